// Copyright 2026 The Kwire Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds the raw stderr output kwire's main needs
// before its structured logger exists.
package process
