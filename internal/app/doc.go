// Package app wires application dependencies for the CLI.
//
// It loads Config through viper, builds the stores, the directory client
// and the high-level services from it, and exposes them via the Wire struct
// for commands to use.
package app
