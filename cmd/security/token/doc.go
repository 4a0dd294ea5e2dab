// Package token hashes browser-session tokens before they reach storage.
//
// With STEPGATE_TOKEN_HMAC_KEY set, digests are HMAC-SHA256 keyed by it;
// otherwise plain SHA-256 (dev mode). Output is always 64 hex characters.
// STEPGATE_REQUIRE_TOKEN_HMAC makes startup refuse to run without a key of
// at least 32 bytes.
package token
