// Package crypto implements the cryptographic core of rchat.
//
// Contents
//
//   - Chat-code generation, parsing and expansion (GenerateChatCode,
//     GenerateNumericChatCode, chatSecret)
//   - Room identifier derivation, BLAKE3 then SHA3-512 (DeriveRoomID)
//   - Root key derivation with Argon2id (DeriveChatKey)
//   - XChaCha20-Poly1305 sealing and opening (Seal, Open)
//   - Ed25519 identity keys, signing and verification (NewIdentity,
//     Identity.Sign, Verify, SignedBytes)
//   - BLAKE3 message commitments (MessageCommitment, VerifyCommitment)
//   - The deterministic chain ratchet (NewChain, Chain.Next, Chain.KeyAt)
//
// # Notes
//
// Every derivation is deterministic in the chat code, so two clients
// holding the same code derive bit-identical keys and room identifiers.
// Callers should treat returned secrets as sensitive and wipe them with
// memzero when done; types carrying long-lived key material expose a
// Zeroize method and must be zeroized on disposal.
package crypto
