// Package identity owns user records for stepgate.
//
// A user carries credentials for primary sign-in and an elevation secret: an
// opaque server-generated value that a browser session must echo back before
// second-step protected pages are served. The secret is written once, when the
// user is created (or first saved without one), and never regenerated by later
// saves.
//
// Two Store implementations exist: PostgresStore for deployments and
// MemoryStore for dev mode and tests.
package identity
