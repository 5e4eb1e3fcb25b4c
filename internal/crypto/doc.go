// Package crypto holds the key material and primitives used by groupseal.
//
// Contents
//
//   - PublicKeyMaterial: a P-256 ECDH key plus a P-256 ECDSA key, identified
//     by SHA-256 over both raw points (ID, memoized)
//   - PrivateKeyMaterial: the matching key pairs, with a versioned JWK-based
//     serialization and an explicit extractable flag
//   - AES key wrap (WrapKey, UnwrapKey), AES-CTR with a 64-bit counter
//     (NewCTR64) and raw r||s ECDSA signatures (Sign, Verify)
//   - Short public-key fingerprints for display/logging (Fingerprint)
//
// # Notes
//
// Raw point encodings are uncompressed SEC1 (65 bytes) and signatures are
// IEEE P1363 (64 bytes), so material exchanged with WebCrypto peers is
// byte-compatible.
package crypto
