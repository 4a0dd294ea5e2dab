// Package password hashes and verifies account passwords with Argon2id.
//
// Hashes use the PHC string format ($argon2id$v=19$m=..,t=..,p=..$salt$key).
// Stored hashes are treated as untrusted input: Verify refuses parameters far
// above the configured cost so a tampered row cannot pin a CPU.
package password
