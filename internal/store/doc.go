// Package store provides file-based persistence for groupseal.
//
// It contains concrete implementations of the domain storage interfaces:
//   - KeyStore: per-user private key blobs, sealed at rest with a key derived
//     from a passphrase (scrypt + ChaCha20-Poly1305)
//   - KVFileStore: small string values (trust records, channel modes)
//
// Files are replaced atomically (temp file + rename) and every store is safe
// for concurrent use within one process.
package store
