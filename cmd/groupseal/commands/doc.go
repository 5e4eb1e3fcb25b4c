// Package commands defines the groupseal CLI and wires dependencies for subcommands.
//
// Commands
//
//   - init           Generate the local key and register it with the directory
//   - import         Restore the local key from a clear backup
//   - fingerprint    Print the local key fingerprint
//   - status         Show the key state and whether the directory knows it
//   - encrypt        Seal a message for every member of a channel
//   - decrypt        Verify and open a post read from a file or stdin
//   - channel        Join a channel, list members, read or set its mode
//
// # Implementation
//
// The root command reads flags, GROUPSEAL_* environment variables and an
// optional groupseal.yaml from the home directory into an app.Config, then
// builds the dependency graph (key store opener, directory client, resolver,
// services) before any subcommand runs. Subcommands that need the private key
// call loadKey, which opens the sealed key store with the passphrase.
package commands
