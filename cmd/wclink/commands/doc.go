// Package commands defines the wclink CLI and wires dependencies for subcommands.
//
// Commands
//
//   - pair-create  Create a pairing and print its URI
//   - pair         Redeem a pairing URI from a peer
//   - ping         Ping a pairing or session topic
//   - propose      Propose a session over an existing pairing
//   - approve      Listen for proposals and approve them
//   - sessions     List live sessions
//   - disconnect   Delete a session or pairing
//   - relay-probe  Check relay liveness
//
// # Implementation
//
// The root command builds the dependency graph (keychain, stores, relay
// transport, protocol services) before any subcommand runs, so handlers share
// one app context.
package commands
