package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"wclink/internal/app"
	"wclink/internal/domain"
	"wclink/internal/rpc"
	"wclink/internal/session"
)

func topicArg(s string) domain.Topic { return domain.Topic(s) }

// namespacesFromFlags parses --chain, --method and --event into a single
// namespace map keyed by each chain's CAIP-2 namespace.
func namespacesFromFlags(chains, methods, events []string) (map[string]domain.Namespace, error) {
	out := map[string]domain.Namespace{}
	for _, c := range chains {
		key, _, ok := strings.Cut(c, ":")
		if !ok {
			return nil, fmt.Errorf("malformed chain id %q", c)
		}
		ns := out[key]
		ns.Chains = append(ns.Chains, c)
		ns.Methods = methods
		ns.Events = events
		out[key] = ns
	}
	return out, nil
}

// proposeCmd proposes a session over an existing pairing and waits for
// settlement.
func proposeCmd() *cobra.Command {
	var chains, methods, events []string
	cmd := &cobra.Command{
		Use:   "propose <pairing-topic>",
		Short: "Propose a session over a pairing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			required, err := namespacesFromFlags(chains, methods, events)
			if err != nil {
				return err
			}
			wire, err := buildWire(session.Options{})
			if err != nil {
				return err
			}
			client, err := app.Start(cmd.Context(), wire)
			if err != nil {
				return err
			}
			defer client.Close()

			sess, err := client.Sessions.Propose(cmd.Context(), topicArg(args[0]), required)
			if err != nil {
				return fmt.Errorf("proposing session: %w", err)
			}
			fmt.Printf("Session settled on topic %s with %s, expires %s\n",
				sess.Topic, sess.Peer.Metadata.Name, sess.Expiry.Format("2006-01-02 15:04:05"))
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&chains, "chain", []string{"eip155:1"}, "required CAIP-2 chain (repeatable)")
	cmd.Flags().StringArrayVar(&methods, "method", []string{"personal_sign"}, "required RPC method (repeatable)")
	cmd.Flags().StringArrayVar(&events, "event", nil, "required event (repeatable)")
	return cmd
}

// approveCmd listens for inbound proposals and approves them with the
// configured grant until interrupted.
func approveCmd() *cobra.Command {
	var chains, methods, events, accounts []string
	cmd := &cobra.Command{
		Use:   "approve",
		Short: "Listen for session proposals and approve them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			granted, err := namespacesFromFlags(chains, methods, events)
			if err != nil {
				return err
			}
			for key, ns := range granted {
				for _, acc := range accounts {
					if strings.HasPrefix(acc, key+":") {
						ns.Accounts = append(ns.Accounts, acc)
					}
				}
				granted[key] = ns
			}

			proposals := make(chan session.ProposalEvent, 4)
			wire, err := buildWire(session.Options{
				OnProposal: func(ev session.ProposalEvent) { proposals <- ev },
				OnRequest: func(_ context.Context, ev session.RequestEvent) (any, *rpc.Error) {
					fmt.Printf("Request %s on %s: %s\n", ev.Request.Method, ev.Request.ChainID, ev.Request.Params)
					return nil, &rpc.Error{Code: 5000, Message: "interactive signing not supported"}
				},
			})
			if err != nil {
				return err
			}
			client, err := app.Start(cmd.Context(), wire)
			if err != nil {
				return err
			}
			defer client.Close()

			fmt.Println("Waiting for proposals. Ctrl-C to stop.")
			for {
				select {
				case <-cmd.Context().Done():
					return nil
				case ev := <-proposals:
					sess, err := client.Sessions.Approve(cmd.Context(), ev.ID, granted)
					if err != nil {
						fmt.Printf("Approval failed: %v\n", err)
						continue
					}
					fmt.Printf("Session settled on topic %s with %s\n", sess.Topic, sess.Peer.Metadata.Name)
				}
			}
		},
	}
	cmd.Flags().StringArrayVar(&chains, "chain", []string{"eip155:1"}, "granted CAIP-2 chain (repeatable)")
	cmd.Flags().StringArrayVar(&methods, "method", []string{"personal_sign", "eth_sendTransaction"}, "granted RPC method (repeatable)")
	cmd.Flags().StringArrayVar(&events, "event", []string{"chainChanged", "accountsChanged"}, "granted event (repeatable)")
	cmd.Flags().StringArrayVar(&accounts, "account", nil, "granted CAIP-10 account (repeatable)")
	return cmd
}

// sessionsCmd lists live sessions, expiring stale rows on the way.
func sessionsCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List live sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			wire, err := buildWire(session.Options{})
			if err != nil {
				return err
			}
			live, err := wire.Sessions.List()
			if err != nil {
				return err
			}
			if asJSON {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(live)
			}
			if len(live) == 0 {
				fmt.Println("No live sessions.")
				return nil
			}
			for _, sess := range live {
				fmt.Printf("%s  peer=%s  expires=%s  acknowledged=%v\n",
					sess.Topic, sess.Peer.Metadata.Name, sess.Expiry.Format("2006-01-02 15:04:05"), sess.Acknowledged)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print sessions as JSON")
	return cmd
}

// disconnectCmd deletes a session, or a pairing with --pairing.
func disconnectCmd() *cobra.Command {
	var isPairing bool
	cmd := &cobra.Command{
		Use:   "disconnect <topic>",
		Short: "Delete a session or pairing",
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

			if isPairing {
				if err := client.Pairings.Disconnect(cmd.Context(), topicArg(args[0])); err != nil {
					return fmt.Errorf("disconnecting pairing: %w", err)
				}
			} else if err := client.Sessions.Disconnect(cmd.Context(), topicArg(args[0])); err != nil {
				return fmt.Errorf("disconnecting session: %w", err)
			}
			fmt.Println("Disconnected.")
			return nil
		},
	}
	cmd.Flags().BoolVar(&isPairing, "pairing", false, "treat the topic as a pairing")
	return cmd
}
