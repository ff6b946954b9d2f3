package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"wclink/internal/app"
	"wclink/internal/session"
)

// pairCreateCmd creates a pairing and prints the URI for the peer to redeem.
func pairCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pair-create",
		Short: "Create a pairing and print its URI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			wire, err := buildWire(session.Options{})
			if err != nil {
				return err
			}
			client, err := app.Start(cmd.Context(), wire)
			if err != nil {
				return err
			}
			defer client.Close()

			p, uri, err := client.Pairings.Create(cmd.Context())
			if err != nil {
				return fmt.Errorf("creating pairing: %w", err)
			}
			fmt.Printf("%s\n", uri)
			fmt.Printf("Topic: %s\nExpires: %s\n", p.Topic, p.Expiry.Format("2006-01-02 15:04:05"))
			return nil
		},
	}
}

// pairCmd redeems a pairing URI produced by a peer.
func pairCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pair <uri>",
		Short: "Redeem a pairing URI",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wire, err := buildWire(session.Options{})
			if err != nil {
				return err
			}
			client, err := app.Start(cmd.Context(), wire)
			if err != nil {
				return err
			}
			defer client.Close()

			p, err := client.Pairings.Pair(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("redeeming pairing: %w", err)
			}
			fmt.Printf("Paired on topic %s, expires %s\n", p.Topic, p.Expiry.Format("2006-01-02 15:04:05"))
			return nil
		},
	}
}

// pingCmd probes a pairing topic for liveness.
func pingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping <topic>",
		Short: "Ping a pairing topic",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wire, err := buildWire(session.Options{})
			if err != nil {
				return err
			}
			client, err := app.Start(cmd.Context(), wire)
			if err != nil {
				return err
			}
			defer client.Close()

			if err := client.Pairings.Ping(cmd.Context(), topicArg(args[0])); err != nil {
				return fmt.Errorf("pinging %s: %w", args[0], err)
			}
			fmt.Println("Pong.")
			return nil
		},
	}
}
