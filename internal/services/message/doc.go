// Package message encrypts outgoing channel posts and decrypts incoming ones.
//
// Outgoing posts follow the channel's encryption mode as recorded by the
// directory. A channel that switched back to clear text since the user's
// last post is refused unless the caller explicitly allows the downgrade.
// Incoming posts are served from the decrypted message cache when possible;
// otherwise the sender's key is resolved, checked against the trust record,
// and used to verify the envelope before decryption.
package message
