package main

import (
	"fmt"
	"log/slog"

	"github.com/brojonat/genesis/service/config"
	"github.com/brojonat/genesis/service/metrics"
	"github.com/brojonat/genesis/service/session"
	"github.com/brojonat/genesis/service/simulated"
	"github.com/brojonat/genesis/service/solana"
	"github.com/brojonat/genesis/service/temporal"
)

// newProviderFactory returns the factory the registry uses for new sessions
// and a cleanup func for anything it dialed.
func newProviderFactory(cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) (session.ProviderFactory, func(), error) {
	switch cfg.Provider {
	case config.ProviderSimulated:
		simCfg := simulated.DefaultConfig()
		simCfg.Network = cfg.Network
		simCfg.ConnectDelay = cfg.SimulatedConnectDelay
		simCfg.TransferDelay = cfg.SimulatedTransferDelay
		simCfg.FailureRate = cfg.SimulatedFailureRate
		return func() (session.Provider, error) {
			return simulated.New(simCfg, logger), nil
		}, func() {}, nil

	case config.ProviderSolana:
		client, err := newSolanaClient(cfg, m, logger)
		if err != nil {
			return nil, nil, err
		}
		return func() (session.Provider, error) {
			wallet, err := solana.NewWallet(client, cfg.WalletPrivateKey, logger)
			if err != nil {
				return nil, err
			}
			return wallet, nil
		}, func() {}, nil

	case config.ProviderTemporal:
		client, err := newSolanaClient(cfg, m, logger)
		if err != nil {
			return nil, nil, err
		}
		temporalClient, err := temporal.NewClient(cfg.TemporalHost, cfg.TemporalNamespace, cfg.TemporalTaskQueue, logger)
		if err != nil {
			return nil, nil, err
		}
		return func() (session.Provider, error) {
			wallet, err := solana.NewWallet(client, cfg.WalletPrivateKey, logger)
			if err != nil {
				return nil, err
			}
			return temporal.NewTransferProvider(wallet, temporalClient, cfg.TemporalTaskQueue, "", logger), nil
		}, temporalClient.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

func newSolanaClient(cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) (*solana.Client, error) {
	endpoint, err := solana.SelectRandomEndpoint(cfg.SolanaRPCURLs)
	if err != nil {
		return nil, err
	}
	logger.Info("initialized solana RPC client",
		"endpoint", solana.EndpointLabel(endpoint),
		"total_endpoints", len(cfg.SolanaRPCURLs),
		"network", cfg.Network,
	)
	return solana.NewClient(
		solana.NewRPCClient(endpoint),
		solana.EndpointLabel(endpoint),
		cfg.Network,
		solana.ClientOptions{
			PollInterval:   cfg.ConfirmPollInterval,
			ConfirmTimeout: cfg.ConfirmTimeout,
		},
		m,
		logger,
	), nil
}
