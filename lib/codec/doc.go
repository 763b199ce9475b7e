// Copyright 2026 The Kwire Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides kwire's CBOR encoding configuration.
//
// Process graphs are exported as CBOR (kwire plan --cbor) and hashed
// over their CBOR encoding, so the encoding must be deterministic: the
// encoder uses Core Deterministic Encoding (RFC 8949 §4.2). The same
// graph always produces identical bytes and therefore the same hash.
//
// Types shared with JSON output carry `json` struct tags only;
// fxamacker/cbor reads them as a fallback, so a single tag controls
// field naming for both formats.
package codec
