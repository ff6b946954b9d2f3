// Package app wires application dependencies for the CLI.
//
// It builds the concrete stores, transport and protocol services from
// Config, exposing them via the Wire struct for commands to use.
package app
