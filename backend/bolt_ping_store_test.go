package backend

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func testPing(txHash string) *Ping {
	return &Ping{
		WebsiteID:  "site-1",
		URL:        "https://example.com",
		TxHash:     txHash,
		FeePaidWei: "200000000000000",
		IsUp:       true,
		CreatedAt:  1700000000,
	}
}

func TestPingStore_AddAndGet(t *testing.T) {
	store := createTestPingStore(t)

	id, err := store.Do().AddPing(testPing(testTxHash))
	require.NoError(t, err)
	require.EqualValues(t, 1, id)

	ping, err := store.Do().GetPing(id)
	require.NoError(t, err)
	require.NotNil(t, ping)
	require.Equal(t, "site-1", ping.WebsiteID)
	require.Equal(t, testTxHash, ping.TxHash)

	missing, err := store.Do().GetPing(42)
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestPingStore_DuplicateTxHash(t *testing.T) {
	store := createTestPingStore(t)

	_, err := store.Do().AddPing(testPing(testTxHash))
	require.NoError(t, err)

	_, err = store.Do().AddPing(testPing(testTxHash))
	require.ErrorIs(t, err, ErrTxAlreadyUsed)

	// case differences in the hex hash do not defeat the guard
	_, err = store.Do().AddPing(testPing("0x" + strings.ToUpper(testTxHash[2:])))
	require.ErrorIs(t, err, ErrTxAlreadyUsed)
}

func TestPingStore_GetPingsByWebsite(t *testing.T) {
	store := createTestPingStore(t)

	for i := 0; i < 5; i++ {
		ping := testPing(fmt.Sprintf("0x%064d", i))
		if i%2 == 0 {
			ping.WebsiteID = "site-2"
		}
		_, err := store.Do().AddPing(ping)
		require.NoError(t, err)
	}

	pings, err := store.Do().GetPings("site-2", 10)
	require.NoError(t, err)
	require.Len(t, pings, 3)
	for _, p := range pings {
		require.Equal(t, "site-2", p.WebsiteID)
	}

	all, err := store.Do().GetPings("", 10)
	require.NoError(t, err)
	require.Len(t, all, 5)
	// most recent first
	require.EqualValues(t, 5, all[0].ID)

	limited, err := store.Do().GetPings("", 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)

	none, err := store.Do().GetPings("site-404", 10)
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestPingStore_TxRecords(t *testing.T) {
	store := createTestPingStore(t)

	err := store.WithTransaction(func(txc PingStoreTx) error {
		pingID, err := txc.AddPing(testPing(testTxHash))
		if err != nil {
			return err
		}
		return txc.AddTxRecord(&TxRecord{
			TxHash:    testTxHash,
			PingID:    pingID,
			AmountWei: "200000000000000",
			GasUsed:   25_000,
			CreatedAt: 1700000000,
		})
	})
	require.NoError(t, err)

	recs, err := store.Do().GetTxRecords()
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, testTxHash, recs[0].TxHash)
	require.EqualValues(t, 1, recs[0].PingID)
}
