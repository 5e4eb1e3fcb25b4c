// Package main runs the groupseal directory: the server side record of user
// public keys, channel membership and channel encryption modes.
//
// HTTP API
//
// Every request carries the caller in the X-User-ID header; requests without
// it get 401.
//
//	POST /api/v1/pubkey/push
//	    Register the caller's public key. An optional backupGPG field is a
//	    protected backup; it is stored and delivered to the caller's maildir.
//
//	POST /api/v1/pubkey/get { "userIds": [...] }
//	    Return one entry per requested user, null for users without a key.
//
//	GET  /api/v1/channel/encryption_method?chanID=C
//	POST /api/v1/channel/encryption_method?chanID=C&method=none|p2p
//	    Read or set the channel mode. The caller must be a member.
//
//	POST /api/v1/channel/join?chanID=C
//	GET  /api/v1/channel/members?chanID=C
//	    Join a channel, or list its members and those without a key.
//
//	GET /api/v1/gpg/get_pub_key
//	    Return the armored OpenPGP key backups are encrypted to, fetched from
//	    the configured HKP key server. 404 when backups are disabled.
//
// Behaviour
//
//   - State is kept in a JSON file under --data and survives restarts.
//   - The directory never sees private keys or plaintext.
//   - The default listen address is :8080.
package main
