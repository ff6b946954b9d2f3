package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"wclink/internal/app"
	"wclink/internal/domain"
	"wclink/internal/session"
)

var (
	home     string
	relayURL string
	appName  string
	chainRPC []string

	cfg app.Config
)

// buildWire constructs the dependency graph for one command. Session
// handlers differ per command, so each builds its own wire.
func buildWire(opts session.Options) (*app.Wire, error) {
	return app.NewWire(cfg, opts)
}

func Execute() error {
	root := &cobra.Command{
		Use:   "wclink",
		Short: "Encrypted pairing and session client",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if home == "" {
				dir, err := os.UserHomeDir()
				if err != nil {
					return err
				}
				home = filepath.Join(dir, ".wclink")
			}
			if err := os.MkdirAll(home, 0o700); err != nil {
				return err
			}

			rpc := make(map[string]string, len(chainRPC))
			for _, entry := range chainRPC {
				chain, url, ok := strings.Cut(entry, "=")
				if !ok {
					return fmt.Errorf("malformed --chain-rpc entry %q, want chain=url", entry)
				}
				rpc[chain] = url
			}

			cfg = app.Config{
				Home:     home,
				RelayURL: relayURL,
				ChainRPC: rpc,
				Metadata: domain.AppMetadata{Name: appName},
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&home, "home", "", "config dir (default ~/.wclink)")
	root.PersistentFlags().StringVar(&relayURL, "relay", "ws://127.0.0.1:8080/ws", "relay websocket URL")
	root.PersistentFlags().StringVar(&appName, "name", "wclink", "app name published to peers")
	root.PersistentFlags().StringArrayVar(&chainRPC, "chain-rpc", nil, "chain RPC endpoint, chain=url (repeatable)")

	root.AddCommand(
		pairCreateCmd(), pairCmd(), pingCmd(),
		proposeCmd(), approveCmd(), sessionsCmd(),
		disconnectCmd(), relayProbeCmd(),
	)
	return root.Execute()
}
