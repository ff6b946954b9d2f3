package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"wclink/internal/crypto"
	"wclink/internal/relay"
)

// relayProbeCmd checks relay liveness: connect, subscribe to a throwaway
// topic, unsubscribe, disconnect.
func relayProbeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "relay-probe",
		Short: "Check relay liveness",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := relay.NewClient(relayURL, relay.Options{})
			start := time.Now()
			if err := client.Connect(cmd.Context()); err != nil {
				return fmt.Errorf("connecting to %s: %w", relayURL, err)
			}
			defer client.Disconnect()

			topic, err := crypto.RandomTopic()
			if err != nil {
				return err
			}
			id, err := client.Subscribe(cmd.Context(), topic)
			if err != nil {
				return fmt.Errorf("subscribing: %w", err)
			}
			if err := client.Unsubscribe(cmd.Context(), topic, id); err != nil {
				return fmt.Errorf("unsubscribing: %w", err)
			}
			fmt.Printf("Relay %s OK, round trip %s\n", relayURL, time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
}
