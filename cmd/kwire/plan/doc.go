// Copyright 2026 The Kwire Authors
// SPDX-License-Identifier: Apache-2.0

// Package plan implements "kwire plan" and "kwire script", which show a
// graph without running it: as a tree grouped by section, as JSON or
// CBOR, as its identity hash, or as an equivalent bash script.
package plan
