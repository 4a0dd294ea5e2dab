// Package account is stepgate's primary authentication: registration, sign-in,
// sign-out and the session-to-identity lookup every protected route starts with.
//
// Passwords are Argon2id hashes (identity package). A successful sign-in binds
// the browser session to the user and rotates the session id. Sign-in attempts
// are throttled per client IP; elevation confirmation is not.
package account
