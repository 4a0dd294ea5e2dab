// Package session implements stepgate's server-side browser sessions.
//
// A session is a small key/value scope persisted in a Store (Postgres
// web_sessions, or memory in dev mode). The browser holds only a cookie: a
// PASETO v4.public token whose claim carries a random opaque session token.
// The store keeps the hash of that opaque token (HMAC-SHA256 when
// STEPGATE_TOKEN_HMAC_KEY is set, otherwise SHA-256), never the token itself.
//
// Forged or tampered cookies fail signature verification before any store
// lookup. Missing, expired, idle or revoked sessions load as a fresh anonymous
// session rather than an error.
//
// Binding an identity to a session (sign-in) issues a new session id and
// revokes the old row.
package session
