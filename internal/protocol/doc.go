// Package protocol speaks the core's client protocol over a live stream.
//
// Ownership boundary:
// - the Protocol contract and its Legacy and Datastream variants
// - request type enumeration and frame classification into events
// - compression splicing and in-place TLS upgrade
// - the variant registry used by the probe negotiator
package protocol
