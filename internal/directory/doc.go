// Package directory is the server side record of public keys, channel
// membership and channel encryption modes.
//
// Registry holds the records in a key/value store. Local serves one user's
// view of a Registry in process, and HTTPClient serves the same view from a
// remote directory server (see the server subpackage). Both implement
// domain.Directory.
package directory
