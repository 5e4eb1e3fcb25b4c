// Package trust remembers which public keys were seen for each user and each
// channel.
//
// It is trust on first use: the first key seen for a user is recorded, and a
// later different key is reported as a change so the caller can warn. Per
// channel it records the identities messages were encrypted for, so a sender
// learns when a post is about to reach new keys. It also keeps the last
// encryption mode used in each channel.
package trust
