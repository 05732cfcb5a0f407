package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ainvaltin/httpsrv"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/webtether/webtether/internal/logger"
	"github.com/webtether/webtether/wallet"
)

type (
	Config struct {
		ServerAddr string
		Region     string
		Logger     logger.Logger
	}

	// CheckRequest is the wire format the backend posts to the agent.
	CheckRequest struct {
		URL string `json:"url"`
	}

	agentRestAPI struct {
		checker *Checker
		log     logger.Logger
		rw      *wallet.ResponseWriter
	}
)

// Run starts the check agent and blocks until ctx is cancelled or a fatal
// error occurs.
func Run(ctx context.Context, config *Config) error {
	handler := &agentRestAPI{
		checker: NewChecker(config.Region),
		log:     config.Logger,
		rw:      &wallet.ResponseWriter{LogErr: config.Logger.Error},
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		server := http.Server{
			Addr:              config.ServerAddr,
			Handler:           handler.Router(),
			ReadTimeout:       3 * time.Second,
			ReadHeaderTimeout: time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       30 * time.Second,
		}
		return httpsrv.Run(ctx, &server, httpsrv.ShutdownTimeout(5*time.Second))
	})
	return g.Wait()
}

func (api *agentRestAPI) Router() *mux.Router {
	router := mux.NewRouter().StrictSlash(true)
	router.Use(handlers.CORS(
		handlers.AllowedHeaders([]string{wallet.ContentType}),
		handlers.AllowedMethods([]string{"POST", "OPTIONS"}),
	))
	router.HandleFunc("/", api.checkFunc).Methods("POST", "OPTIONS")
	router.HandleFunc("/health", api.healthFunc).Methods("GET", "OPTIONS")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	return router
}

func (api *agentRestAPI) checkFunc(w http.ResponseWriter, r *http.Request) {
	req := &CheckRequest{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		api.rw.ErrorResponse(w, http.StatusBadRequest, fmt.Errorf("failed to decode request body: %w", err))
		return
	}
	if req.URL == "" {
		api.rw.ErrorResponse(w, http.StatusBadRequest, errors.New("url is required"))
		return
	}
	result := api.checker.Check(r.Context(), req.URL)
	api.log.Info("checked %s: up=%t region=%s", req.URL, result.IsUp, result.Region)
	api.rw.WriteResponse(w, result)
}

func (api *agentRestAPI) healthFunc(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
