package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/eigerco/raffle/internal/config"
	"github.com/eigerco/raffle/internal/crypto"
	"github.com/eigerco/raffle/internal/oracle"
	"github.com/eigerco/raffle/internal/raffle"
	"github.com/eigerco/raffle/pkg/log"
	"github.com/eigerco/raffle/pkg/network/cert"
	"github.com/eigerco/raffle/pkg/network/node"
)

const callTimeout = 10 * time.Second

// withClient dials the node named by --addr with the key named by --key and
// runs fn against it.
func withClient(cmd *cobra.Command, fn func(ctx context.Context, c *node.Client, cfg config.Config) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := initLogging(cfg); err != nil {
		return err
	}
	addr, _ := cmd.Flags().GetString("addr")
	if addr == "" {
		addr = cfg.Network.Listen
	}
	key, err := cert.ReadKeyFile(cfg.Network.KeyFile)
	if err != nil {
		return err
	}
	rcfg, err := cfg.RaffleConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), callTimeout)
	defer cancel()
	c, err := node.Dial(ctx, addr, node.ClientConfig{
		PrivateKey:   key,
		DeploymentID: node.DeploymentID(rcfg),
		Logger:       log.Network,
	})
	if err != nil {
		return err
	}
	defer c.Close() //nolint:errcheck
	return fn(ctx, c, cfg)
}

// targetAddress parses the optional positional address argument.
func targetAddress(args []string) (*crypto.Address, error) {
	if len(args) == 0 {
		return nil, nil
	}
	addr, err := crypto.ParseAddress(args[0])
	if err != nil {
		return nil, err
	}
	return &addr, nil
}

func printf(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the state of the current round",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *node.Client, _ config.Config) error {
			st, err := c.Status(ctx)
			if err != nil {
				return err
			}
			printf(cmd, "state:           %s\n", st.State)
			printf(cmd, "generation:      %d\n", st.Generation)
			printf(cmd, "players:         %d\n", st.Players)
			printf(cmd, "pool:            %d\n", st.Pool)
			printf(cmd, "entrance fee:    %d\n", st.EntranceFee)
			printf(cmd, "interval:        %s\n", st.Interval)
			printf(cmd, "last timestamp:  %s\n", st.LastTimestamp.Format(time.RFC3339))
			printf(cmd, "upkeep needed:   %t\n", st.UpkeepNeeded)
			printf(cmd, "pending request: %d\n", st.PendingRequest)
			if !st.RecentWinner.IsZero() {
				printf(cmd, "recent winner:   %s\n", st.RecentWinner)
			}
			printf(cmd, "escrow:          %s\n", st.Escrow)
			return nil
		})
	},
}

var enterCmd = &cobra.Command{
	Use:   "enter [amount]",
	Short: "Enter the current round, paying the entrance fee by default",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *node.Client, cfg config.Config) error {
			amount := cfg.Raffle.EntranceFee
			if len(args) == 1 {
				var err error
				if amount, err = strconv.ParseUint(args[0], 10, 64); err != nil {
					return fmt.Errorf("amount: %w", err)
				}
			}
			index, err := c.Enter(ctx, amount)
			if err != nil {
				return err
			}
			printf(cmd, "entered %s as player %d\n", c.Address(), index)
			return nil
		})
	},
}

var depositCmd = &cobra.Command{
	Use:   "deposit amount [address]",
	Short: "Fund an account, the caller's by default",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("amount: %w", err)
		}
		target, err := targetAddress(args[1:])
		if err != nil {
			return err
		}
		return withClient(cmd, func(ctx context.Context, c *node.Client, _ config.Config) error {
			return c.Deposit(ctx, target, amount)
		})
	},
}

var balanceCmd = &cobra.Command{
	Use:   "balance [address]",
	Short: "Print an account balance, the caller's by default",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := targetAddress(args)
		if err != nil {
			return err
		}
		return withClient(cmd, func(ctx context.Context, c *node.Client, _ config.Config) error {
			balance, err := c.Balance(ctx, target)
			if err != nil {
				return err
			}
			printf(cmd, "%d\n", balance)
			return nil
		})
	},
}

var upkeepCmd = &cobra.Command{
	Use:   "upkeep",
	Short: "Check upkeep and perform it when needed",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *node.Client, _ config.Config) error {
			needed, err := c.CheckUpkeep(ctx)
			if err != nil {
				return err
			}
			if !needed {
				printf(cmd, "upkeep not needed\n")
				return nil
			}
			id, err := c.PerformUpkeep(ctx)
			if err != nil {
				return err
			}
			printf(cmd, "requested randomness, request %d\n", id)
			return nil
		})
	},
}

// fulfillCmd answers pending requests for a node running a remote oracle. The
// key must be the node's oracle.key and the words come from oracle.seed.
var fulfillCmd = &cobra.Command{
	Use:   "fulfill",
	Short: "Fulfill the node's pending randomness requests",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *node.Client, cfg config.Config) error {
			seed, err := cfg.Seed()
			if err != nil {
				return err
			}
			words := oracle.NewCoordinator(seed)

			pending, err := c.PendingRequests(ctx)
			if err != nil {
				return err
			}
			if len(pending) == 0 {
				printf(cmd, "no pending requests\n")
				return nil
			}
			for _, p := range pending {
				id := raffle.RequestID(p.RequestID)
				if err := c.FulfillRandomWords(ctx, id, words.Words(id, p.NumWords)); err != nil {
					return fmt.Errorf("request %d: %w", id, err)
				}
				printf(cmd, "fulfilled request %d\n", id)
			}
			return nil
		})
	},
}
