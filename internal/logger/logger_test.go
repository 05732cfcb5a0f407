package logger

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLevelFromString(t *testing.T) {
	require.Equal(t, NONE, LevelFromString("NONE"))
	require.Equal(t, ERROR, LevelFromString("ERROR"))
	require.Equal(t, WARNING, LevelFromString("WARNING"))
	require.Equal(t, INFO, LevelFromString("INFO"))
	require.Equal(t, DEBUG, LevelFromString("DEBUG"))
	// unknown levels default to INFO
	require.Equal(t, INFO, LevelFromString("bogus"))
}

func TestNewWithDefaults(t *testing.T) {
	log, err := New(nil)
	require.NoError(t, err)
	require.NotNil(t, log)
	log.Info("no-op smoke test %d", 1)
}

func TestNewWithDiscardOutput(t *testing.T) {
	log, err := New(&LogConfiguration{DefaultLevel: "DEBUG", OutputPath: "discard"})
	require.NoError(t, err)
	log.Debug("discarded")
	log.ChangeLevel(ERROR)
	log.Error("still discarded")
}
