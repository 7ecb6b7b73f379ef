// Package session owns transport-level helpers for core connections.
//
// Ownership boundary:
// - connection timing and security settings
// - client TLS configuration for in-place upgrades
// - the pre-protocol probe (magic, connection features, protocol offers)
package session
