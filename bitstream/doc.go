// Package bitstream implements an append-only, MSB-first bit buffer and a
// sequential reader over it.
//
// Bits are packed into a byte slice in insertion order. The byte layout is
// "standard": bytes appear in the order they were written, and within each
// byte the first bit inserted is the most significant bit. This makes
// to_bytes/from_bytes a faithful round trip regardless of bit count.
package bitstream
