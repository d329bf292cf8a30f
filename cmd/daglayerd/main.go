package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"daglayer/internal/config"
	"daglayer/internal/hashid"
	"daglayer/internal/node"
	"daglayer/internal/txsign"
)

func main() {
	rootCmd := &cobra.Command{Use: "daglayerd"}
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(genesisCmd())
	rootCmd.AddCommand(configCmd())
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "run a daglayer node",
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, _ := cmd.Flags().GetString("profile")
			bind, _ := cmd.Flags().GetString("bind")

			cfg, err := loadOrDefault(profile)
			if err != nil {
				return err
			}

			log := logrus.NewEntry(logrus.StandardLogger())
			n := node.New(*cfg, bind, prometheus.DefaultRegisterer, log)
			n.Start()

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
			<-sig

			return n.Stop()
		},
	}
	cmd.Flags().String("profile", "", "configuration profile overlay (e.g. production)")
	cmd.Flags().String("bind", ":8080", "HTTP gateway listen address")
	return cmd
}

// genesisCmd prints the genesis block parameters a fresh node would admit
// and, alongside them, a signed allocation attesting which address the
// genesis balance is credited to: a fresh secp256k1 keypair signs a fixed
// genesis message, and the signature is verified before being printed, so
// a caller piping this output elsewhere can trust the (address,
// signature) pair came from a key that actually controls it.
func genesisCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "genesis",
		Short: "print the genesis block parameters a fresh node would admit",
		RunE: func(cmd *cobra.Command, args []string) error {
			kp, err := txsign.GenerateKeypair()
			if err != nil {
				return err
			}
			msgHash := hashid.Keccak256([]byte("daglayer genesis allocation"))
			sig := kp.Sign(msgHash)
			if err := txsign.Verify(kp.PublicKeyBytes(), msgHash, sig); err != nil {
				return fmt.Errorf("genesis allocation signature failed self-check: %w", err)
			}

			fmt.Println("genesis: no parents, height 0, accepted by any stream on first tick")
			fmt.Printf("allocation address: %s\n", kp.Address())
			fmt.Printf("allocation signature: %x\n", sig)
			return nil
		},
	}
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "config"}
	validate := &cobra.Command{
		Use:   "validate",
		Short: "validate the process configuration without starting a node",
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, _ := cmd.Flags().GetString("profile")
			if _, err := config.Load(profile); err != nil {
				return err
			}
			fmt.Println("configuration valid")
			return nil
		},
	}
	validate.Flags().String("profile", "", "configuration profile overlay")
	cmd.AddCommand(validate)
	return cmd
}

// loadOrDefault loads configuration from disk/env, falling back to
// Default() when no config file is present. Any other load error (a
// present-but-malformed file, an unknown key rejected by
// UnmarshalExact) is propagated rather than silently masked.
func loadOrDefault(profile string) (*config.Config, error) {
	cfg, err := config.Load(profile)
	if err == nil {
		return cfg, nil
	}
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		d := config.Default()
		return &d, nil
	}
	return nil, err
}
