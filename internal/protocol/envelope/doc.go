// Package envelope implements multi-recipient signed encryption of a message.
//
// Encrypt produces an Envelope holding
//
//   - a fresh ephemeral P-256 ECDH public key,
//   - one AES-KW wrapped content key per recipient, tagged with the
//     recipient's public key identity,
//   - the AES-CTR ciphertext (64-bit counter) and its IV,
//   - an ECDSA signature by the sender over the canonical payload.
//
// The signed payload is
//
//	IV(16) || SHA256(raw ephemeral key)(32) || u32le(N) || id_1 .. id_N || u32le(len(ct)) || ct
//
// Wrapped keys are not part of the payload; tampering with one is caught by
// the key unwrap integrity check on Decrypt.
package envelope
