// Package backup converts private keys to and from the portable clear-text
// backup format, and protects backups with an OpenPGP public key.
//
// A backup is the JSON serialization of the key, base64 encoded in
// 60-column lines between the armor header and footer:
//
//	-----BEGIN MM E2EE PRIVATE KEY-----
//	eyJ2ZXJzaW9uIjoxLCJzaWduIjp7Imt0eSI6IkVDIiwiY3J2IjoiUC0yNTYi
//	...
//	-----END MM E2EE PRIVATE KEY-----
package backup
