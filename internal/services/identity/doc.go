// Package identity manages the lifecycle of the local user's private key.
//
// A Manager loads the key from the user's key store and checks it against the
// public key the directory has on record, generates new keys (with a clear
// backup for the user and an optional OpenPGP protected copy for the
// directory) and imports backups. Every key change is pushed to subscribers.
package identity
