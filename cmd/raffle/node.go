package main

import (
	"context"
	"crypto/ed25519"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/eigerco/raffle/internal/automation"
	"github.com/eigerco/raffle/internal/config"
	"github.com/eigerco/raffle/internal/crypto"
	"github.com/eigerco/raffle/internal/oracle"
	"github.com/eigerco/raffle/internal/raffle"
	"github.com/eigerco/raffle/internal/service"
	"github.com/eigerco/raffle/internal/store"
	"github.com/eigerco/raffle/pkg/db/pebble"
	"github.com/eigerco/raffle/pkg/log"
	"github.com/eigerco/raffle/pkg/network/cert"
	"github.com/eigerco/raffle/pkg/network/node"
)

var nodeCmd = &cobra.Command{
	Use:   "node",
	Short: "Run a raffle node",
	Long: `Runs the raffle, its randomness coordinator and upkeep keeper and serves
them over QUIC. State is kept in pebble at store.path, or in memory when the
path is empty.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
			cfg.Network.Listen = listen
		}
		if err := initLogging(cfg); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runNode(ctx, cfg)
	},
}

func init() {
	nodeCmd.Flags().String("listen", "", "listen address (overrides network.listen)")
}

func nodeKey(path string) (ed25519.PrivateKey, error) {
	if fileExists(path) {
		return cert.ReadKeyFile(path)
	}
	log.Root.Info().Str("path", path).Msg("generating node key")
	return cert.GenerateKeyFile(path)
}

func runNode(ctx context.Context, cfg config.Config) error {
	rcfg, err := cfg.RaffleConfig()
	if err != nil {
		return err
	}
	seed, err := cfg.Seed()
	if err != nil {
		return err
	}
	key, err := nodeKey(cfg.Network.KeyFile)
	if err != nil {
		return err
	}

	storeOpts := []pebble.Option{pebble.WithCacheSize(cfg.Store.CacheSize)}
	if cfg.Store.Path != "" {
		storeOpts = append(storeOpts, pebble.WithPath(cfg.Store.Path))
	}
	kv, err := pebble.NewKVStore(storeOpts...)
	if err != nil {
		return err
	}
	defer kv.Close() //nolint:errcheck

	rounds := store.NewRaffle(kv, log.Store)
	accounts := store.NewAccounts(kv, log.Store)
	escrow := accounts.Escrow(crypto.AddressFromPublicKey(key.Public().(ed25519.PublicKey)))

	oracleOpts := []oracle.Option{oracle.WithLogger(log.Oracle)}
	if cfg.Oracle.Mode == config.OracleAuto {
		oracleOpts = append(oracleOpts, oracle.WithAutoFulfill(cfg.Oracle.FulfillDelay.Duration))
	}
	settlement, err := store.NewSettlement(rounds, escrow)
	if err != nil {
		return err
	}
	raffleOpts := []raffle.Option{raffle.WithStore(settlement), raffle.WithLogger(log.Raffle)}

	round, err := rounds.LoadRound()
	switch {
	case errors.Is(err, store.ErrRoundNotFound):
	case err != nil:
		return err
	default:
		raffleOpts = append(raffleOpts, raffle.WithRound(round))
		oracleOpts = append(oracleOpts, oracle.WithLastID(round.LastRequest))
		if round.State == raffle.Calculating {
			oracleOpts = append(oracleOpts, oracle.WithPending(oracle.Request{
				ID:     round.PendingRequest,
				Params: rcfg.RandomWordsRequest(),
			}))
		}
		log.Root.Info().
			Uint64("generation", round.Generation).
			Stringer("state", round.State).
			Int("players", len(round.Players)).
			Msg("restored round")
	}

	coordinator := oracle.NewCoordinator(seed, oracleOpts...)
	defer coordinator.Close() //nolint:errcheck

	r, err := raffle.New(rcfg, coordinator, escrow, raffleOpts...)
	if err != nil {
		return err
	}
	coordinator.Bind(r)

	svcOpts := []service.Option{service.WithLogger(log.Root), service.WithFaucet(cfg.Network.Faucet)}
	if cfg.Oracle.Mode == config.OracleRemote {
		oracleKey, err := cfg.OracleKey()
		if err != nil {
			return err
		}
		svcOpts = append(svcOpts, service.WithOracleKey(oracleKey))
	}
	svc := service.New(r, accounts, escrow, coordinator, svcOpts...)

	// a request restored in auto mode has no delivery scheduled
	if cfg.Oracle.Mode == config.OracleAuto && r.State() == raffle.Calculating {
		if err := coordinator.Fulfill(ctx, r.PendingRequest()); err != nil {
			log.Oracle.Warn().Err(err).Uint64("request_id", uint64(r.PendingRequest())).Msg("fulfilling restored request")
		}
	}

	deploymentID := node.DeploymentID(rcfg)
	server, err := node.NewServer(svc, node.Config{
		ListenAddr:   cfg.Network.Listen,
		PrivateKey:   key,
		CertValidity: cfg.Network.CertValidity.Duration,
		DeploymentID: deploymentID,
		Logger:       log.Network,
	})
	if err != nil {
		return err
	}
	if err := server.Start(); err != nil {
		return err
	}
	defer server.Stop() //nolint:errcheck

	addr, err := server.Addr()
	if err != nil {
		return err
	}
	log.Root.Info().
		Stringer("addr", addr).
		Str("deployment", deploymentID).
		Stringer("escrow", escrow.Address()).
		Str("oracle", cfg.Oracle.Mode).
		Msg("node started")

	if cfg.Keeper.Enabled {
		keeper := automation.NewKeeper(svc,
			automation.WithPollInterval(cfg.Keeper.PollInterval.Duration),
			automation.WithLogger(log.Keeper),
		)
		go func() {
			if err := keeper.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Keeper.Error().Err(err).Msg("keeper stopped")
			}
		}()
	}

	<-ctx.Done()
	log.Root.Info().Msg("shutting down")
	return nil
}
