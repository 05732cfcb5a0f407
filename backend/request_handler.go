package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/webtether/webtether/wallet"
)

const (
	paramWebsiteID = "websiteId"
	paramLimit     = "limit"
	paramPingID    = "pingId"

	defaultListPingsLimit = 100
)

type (
	pingRestAPI struct {
		Service            PingBackendService
		ListPingsPageLimit int
		rw                 *wallet.ResponseWriter
	}

	ListPingsResponse struct {
		Pings []*Ping `json:"pings"`
	}

	TxRecordsResponse struct {
		Transactions []*TxRecord `json:"transactions"`
		TotalCount   int         `json:"totalCount"`
	}
)

func (api *pingRestAPI) Router() *mux.Router {
	router := mux.NewRouter().StrictSlash(true)

	router.HandleFunc("/health", api.healthFunc).Methods("GET", "OPTIONS")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	apiRouter := router.PathPrefix("/api").Subrouter()
	// content-type needs to be explicitly allowed, without it the cors filter
	// rejects preflighted json POSTs
	apiRouter.Use(handlers.CORS(
		handlers.AllowedHeaders([]string{wallet.ContentType, "Authorization"}),
		handlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"}),
	))

	apiV1 := apiRouter.PathPrefix("/v1").Subrouter()
	apiV1.HandleFunc("/pings/manual", api.manualPingFunc).Methods("POST", "OPTIONS")
	apiV1.HandleFunc("/pings", api.listPingsFunc).Methods("GET", "OPTIONS")
	apiV1.HandleFunc("/pings/{pingId}", api.getPingFunc).Methods("GET", "OPTIONS")
	apiV1.HandleFunc("/network/status", api.networkStatusFunc).Methods("GET", "OPTIONS")
	apiV1.HandleFunc("/wallet/transactions", api.txRecordsFunc).Methods("GET", "OPTIONS")

	return router
}

// manualPingFunc is the paid ping entry point. Status codes are part of the
// client contract: 400 incomplete request, 402 payment verification failure,
// 409 reused transaction hash, 502 check agent failure.
func (api *pingRestAPI) manualPingFunc(w http.ResponseWriter, r *http.Request) {
	req := &ManualPingRequest{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		api.rw.ErrorResponse(w, http.StatusBadRequest, fmt.Errorf("failed to decode request body: %w", err))
		return
	}
	if req.WebsiteID == "" || req.URL == "" || req.TxHash == "" {
		api.rw.ErrorResponse(w, http.StatusBadRequest, errors.New("websiteId, url and txHash are required"))
		return
	}
	result, err := api.Service.HandleManualPing(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, ErrTxAlreadyUsed):
			api.rw.ErrorResponse(w, http.StatusConflict, fmt.Errorf("%w: %s", err, req.TxHash))
		case errors.Is(err, ErrPaymentNotFound), errors.Is(err, ErrPaymentInvalid):
			api.rw.ErrorResponse(w, http.StatusPaymentRequired, err)
		case errors.Is(err, ErrAgentFailure):
			api.rw.ErrorResponse(w, http.StatusBadGateway, err)
		default:
			api.rw.WriteErrorResponse(w, err)
		}
		return
	}
	api.rw.WriteResponse(w, result)
}

func (api *pingRestAPI) listPingsFunc(w http.ResponseWriter, r *http.Request) {
	limit, err := parseMaxResponseItems(r.URL.Query().Get(paramLimit), api.listPingsLimit())
	if err != nil {
		api.rw.InvalidParamResponse(w, paramLimit, err)
		return
	}
	pings, err := api.Service.GetPings(r.URL.Query().Get(paramWebsiteID), limit)
	if err != nil {
		api.rw.WriteErrorResponse(w, fmt.Errorf("failed to load pings: %w", err))
		return
	}
	api.rw.WriteResponse(w, &ListPingsResponse{Pings: pings})
}

func (api *pingRestAPI) getPingFunc(w http.ResponseWriter, r *http.Request) {
	pingID, err := strconv.ParseUint(mux.Vars(r)[paramPingID], 10, 64)
	if err != nil {
		api.rw.InvalidParamResponse(w, paramPingID, err)
		return
	}
	ping, err := api.Service.GetPing(pingID)
	if err != nil {
		api.rw.WriteErrorResponse(w, fmt.Errorf("failed to load ping: %w", err))
		return
	}
	if ping == nil {
		api.rw.ErrorResponse(w, http.StatusNotFound, fmt.Errorf("ping %d %w", pingID, wallet.ErrRecordNotFound))
		return
	}
	api.rw.WriteResponse(w, ping)
}

func (api *pingRestAPI) networkStatusFunc(w http.ResponseWriter, r *http.Request) {
	api.rw.WriteResponse(w, api.Service.NetworkStatus())
}

func (api *pingRestAPI) txRecordsFunc(w http.ResponseWriter, r *http.Request) {
	recs, err := api.Service.GetTxRecords()
	if err != nil {
		api.rw.WriteErrorResponse(w, fmt.Errorf("failed to load transactions: %w", err))
		return
	}
	api.rw.WriteResponse(w, &TxRecordsResponse{Transactions: recs, TotalCount: len(recs)})
}

func (api *pingRestAPI) healthFunc(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (api *pingRestAPI) listPingsLimit() int {
	if api.ListPingsPageLimit > 0 {
		return api.ListPingsPageLimit
	}
	return defaultListPingsLimit
}

func parseMaxResponseItems(s string, maxValue int) (int, error) {
	if s == "" {
		return maxValue, nil
	}
	limit, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %q as integer: %w", s, err)
	}
	if limit <= 0 {
		return 0, fmt.Errorf("value must be positive, got %d", limit)
	}
	if limit > maxValue {
		limit = maxValue
	}
	return limit, nil
}
