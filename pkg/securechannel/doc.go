// Package securechannel establishes an authenticated, confidentiality- and
// integrity-protected channel with a smart-card chip and transforms the
// command/response traffic flowing over it.
//
// The channel is negotiated with a two-step GENERAL AUTHENTICATE mutual
// authentication: the host announces its certificate holder reference, the
// card answers with an ephemeral public key, and the host replies with its
// own ephemeral key. Two independent ECDH computations (static/ephemeral in
// both directions) bind long-term and short-term keys into the shared
// secret; a SHA-1 counter KDF then derives the AES-128 session keys Kenc and
// Kmac.
//
// Key components:
//   - Identity / PeerCertificate: validated static key material on both ends
//   - Handshake: the mutual-authentication state machine
//     (Idle → AwaitingPeerEphemeral → Established)
//   - Engine: the stateful secure messaging transform (encipher, decipher,
//     checksum compute/verify) driven by two 16-byte send-sequence counters
//   - Channel: applies the engine to APDUs sent through a Transmitter
//
// The transform must stay bit-exact with the card's implementation: ISO/IEC
// 7816-4 padding, CBC IVs derived by encrypting the counter, CMAC truncated
// to 8 bytes, and counters advancing by two per protected operation (after
// MAC computation on the command path, before verification on the response
// path).
package securechannel
