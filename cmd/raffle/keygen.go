package main

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eigerco/raffle/internal/crypto"
	"github.com/eigerco/raffle/pkg/network/cert"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate an ed25519 key file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		priv, err := cert.GenerateKeyFile(cfg.Network.KeyFile)
		if err != nil {
			return err
		}
		pub := priv.Public().(ed25519.PublicKey)
		fmt.Fprintf(cmd.OutOrStdout(), "key file:   %s\npublic key: %s\naddress:    %s\n",
			cfg.Network.KeyFile, hex.EncodeToString(pub), crypto.AddressFromPublicKey(pub))
		return nil
	},
}
