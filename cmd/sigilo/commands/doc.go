// Package commands defines the sigilo CLI and wires dependencies for
// subcommands.
//
// Commands
//
//   - init          Create the local identity and initial prekey inventory
//   - fingerprint   Print the identity fingerprint
//   - prekeys       Generate, rotate, prune and list prekeys
//   - bundle        Export the public prekey bundle as JSON
//   - session       Establish and manage sessions from peer bundles
//   - trust         Inspect and override pinned peer identities
//   - encrypt       Encrypt stdin for a peer
//   - decrypt       Decrypt an envelope from stdin
//   - status        Show identity, inventory and session summary
//
// # Implementation
//
// The root command loads the TOML configuration and builds the dependency
// graph (log backend, bbolt store, services) before any subcommand runs.
// Message transport is out of scope: envelopes travel between operators
// through whatever channel they choose.
package commands
