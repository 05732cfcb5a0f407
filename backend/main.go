// Package backend records paid pings. It verifies the payment transaction
// on-chain, delegates the actual HTTP check to a remote check agent and stores
// the outcome, guarding against reuse of a payment transaction.
package backend

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/ainvaltin/httpsrv"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"golang.org/x/sync/errgroup"

	"github.com/webtether/webtether/internal/logger"
	"github.com/webtether/webtether/wallet"
)

type (
	PingBackendService interface {
		HandleManualPing(ctx context.Context, req *ManualPingRequest) (*wallet.PingResult, error)
		GetPing(pingID uint64) (*Ping, error)
		GetPings(websiteID string, limit int) ([]*Ping, error)
		GetTxRecords() ([]*TxRecord, error)
		NetworkStatus() *NetworkStatus
	}

	PingBackend struct {
		store    PingStore
		verifier PaymentVerifier
		agent    AgentCaller
		cfg      *Config
		log      logger.Logger
	}

	// Ping is one recorded availability check, paid for on-chain.
	Ping struct {
		ID        uint64 `json:"id"`
		WebsiteID string `json:"websiteId"`
		URL       string `json:"url"`
		TxHash    string `json:"txHash"`
		// FeePaidWei is the verified on-chain amount, wei as a decimal string.
		FeePaidWei string `json:"feePaidWei"`
		Code       string `json:"code,omitempty"`
		IsUp       bool   `json:"isUp"`
		LatencyMs  *int64 `json:"latencyMs,omitempty"`
		Region     string `json:"region,omitempty"`
		CreatedAt  int64  `json:"createdAt"`
	}

	// TxRecord is the payment side of a recorded ping.
	TxRecord struct {
		TxHash    string `json:"txHash"`
		PingID    uint64 `json:"pingId"`
		AmountWei string `json:"amountWei"`
		GasUsed   uint64 `json:"gasUsed,omitempty"`
		CreatedAt int64  `json:"createdAt"`
	}

	// ManualPingRequest is the decoded manual ping submission.
	ManualPingRequest struct {
		WebsiteID string `json:"websiteId"`
		URL       string `json:"url"`
		TxHash    string `json:"txHash"`
		FeePaid   string `json:"feePaid"`
		Code      string `json:"code,omitempty"`
	}

	NetworkStatus struct {
		ChainID         uint64 `json:"chainId"`
		NetworkName     string `json:"networkName"`
		NodeURL         string `json:"nodeUrl"`
		ContractAddress string `json:"contractAddress"`
		PingCostWei     string `json:"pingCostWei"`
	}

	// PingStore type for creating PingStoreTx transactions
	PingStore interface {
		Do() PingStoreTx
		WithTransaction(func(tx PingStoreTx) error) error
	}

	// PingStoreTx type for managing ping and payment records
	PingStoreTx interface {
		AddPing(ping *Ping) (uint64, error)
		GetPing(id uint64) (*Ping, error)
		GetPings(websiteID string, limit int) ([]*Ping, error)
		IsTxHashUsed(txHash string) (bool, error)
		AddTxRecord(rec *TxRecord) error
		GetTxRecords() ([]*TxRecord, error)
	}

	Config struct {
		ServerAddr         string
		DbFile             string
		NodeURL            string
		AgentURL           string
		ContractAddress    common.Address
		FeeWei             *big.Int
		NetworkName        string
		ChainID            uint64
		ListPingsPageLimit int
		Logger             logger.Logger
	}
)

// Run starts the ping backend and blocks until ctx is cancelled or a fatal
// error occurs.
func Run(ctx context.Context, config *Config) error {
	store, err := NewBoltPingStore(config.DbFile)
	if err != nil {
		return fmt.Errorf("failed to get storage: %w", err)
	}
	defer store.Close()

	ethClient, err := ethclient.DialContext(ctx, config.NodeURL)
	if err != nil {
		return fmt.Errorf("failed to dial node %s: %w", config.NodeURL, err)
	}
	defer ethClient.Close()

	service := New(
		store,
		NewPaymentVerifier(ethClient, config.ContractAddress, config.FeeWei),
		NewAgentClient(config.AgentURL),
		config,
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		handler := &pingRestAPI{
			Service:            service,
			ListPingsPageLimit: config.ListPingsPageLimit,
			rw:                 &wallet.ResponseWriter{LogErr: config.Logger.Error},
		}
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

func New(store PingStore, verifier PaymentVerifier, agent AgentCaller, cfg *Config) *PingBackend {
	return &PingBackend{
		store:    store,
		verifier: verifier,
		agent:    agent,
		cfg:      cfg,
		log:      cfg.Logger,
	}
}

// HandleManualPing runs the full manual ping flow: duplicate guard, on-chain
// payment verification, agent check, persistence. The verification and the
// duplicate guard run before the agent is called so that a rejected payment
// never triggers an HTTP check.
func (b *PingBackend) HandleManualPing(ctx context.Context, req *ManualPingRequest) (*wallet.PingResult, error) {
	used, err := b.store.Do().IsTxHashUsed(req.TxHash)
	if err != nil {
		return nil, fmt.Errorf("failed to check transaction hash: %w", err)
	}
	if used {
		manualPingsTotal.WithLabelValues(outcomeDuplicate).Inc()
		return nil, ErrTxAlreadyUsed
	}

	payment, err := b.verifier.Verify(ctx, req.TxHash)
	if err != nil {
		manualPingsTotal.WithLabelValues(outcomeRejected).Inc()
		return nil, err
	}
	b.log.Debug("payment %s verified, %s wei from %s", req.TxHash, payment.AmountWei, payment.From)

	checkStart := time.Now()
	checkResult, err := b.agent.CheckWebsite(ctx, req.URL)
	agentCallDuration.Observe(time.Since(checkStart).Seconds())
	if err != nil {
		manualPingsTotal.WithLabelValues(outcomeAgentFailure).Inc()
		return nil, fmt.Errorf("%w: %v", ErrAgentFailure, err)
	}

	now := time.Now().Unix()
	ping := &Ping{
		WebsiteID:  req.WebsiteID,
		URL:        req.URL,
		TxHash:     req.TxHash,
		FeePaidWei: payment.AmountWei.String(),
		Code:       req.Code,
		IsUp:       checkResult.IsUp,
		LatencyMs:  checkResult.LatencyMs,
		Region:     checkResult.Region,
		CreatedAt:  now,
	}
	err = b.store.WithTransaction(func(txc PingStoreTx) error {
		pingID, err := txc.AddPing(ping)
		if err != nil {
			return err
		}
		return txc.AddTxRecord(&TxRecord{
			TxHash:    req.TxHash,
			PingID:    pingID,
			AmountWei: payment.AmountWei.String(),
			GasUsed:   payment.GasUsed,
			CreatedAt: now,
		})
	})
	if err != nil {
		if errors.Is(err, ErrTxAlreadyUsed) {
			manualPingsTotal.WithLabelValues(outcomeDuplicate).Inc()
			return nil, err
		}
		return nil, fmt.Errorf("failed to store ping: %w", err)
	}

	manualPingsTotal.WithLabelValues(outcomeRecorded).Inc()
	b.log.Info("recorded ping %d for website %s, up=%t", ping.ID, ping.WebsiteID, ping.IsUp)
	return &wallet.PingResult{IsReachable: checkResult.IsUp, LatencyMs: checkResult.LatencyMs}, nil
}

func (b *PingBackend) GetPing(pingID uint64) (*Ping, error) {
	return b.store.Do().GetPing(pingID)
}

func (b *PingBackend) GetPings(websiteID string, limit int) ([]*Ping, error) {
	return b.store.Do().GetPings(websiteID, limit)
}

func (b *PingBackend) GetTxRecords() ([]*TxRecord, error) {
	return b.store.Do().GetTxRecords()
}

func (b *PingBackend) NetworkStatus() *NetworkStatus {
	return &NetworkStatus{
		ChainID:         b.cfg.ChainID,
		NetworkName:     b.cfg.NetworkName,
		NodeURL:         b.cfg.NodeURL,
		ContractAddress: b.cfg.ContractAddress.Hex(),
		PingCostWei:     b.cfg.FeeWei.String(),
	}
}
