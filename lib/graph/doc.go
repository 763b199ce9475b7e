// Copyright 2026 The Kwire Authors
// SPDX-License-Identifier: Apache-2.0

// Package graph models a pipeline as an explicit directed graph of OS
// processes connected by named pipes (FIFOs), anonymous pipes and
// regular files.
//
// A [Graph] is pure data: it names the directories and FIFOs that must
// exist before anything starts, and lists [Node] values in declaration
// order. Each node is either an external process or a tee that fans one
// stream out to several endpoints. A node's stdin and stdout attach to
// an [Endpoint]; FIFOs and files that a program opens itself through its
// arguments are declared in Reads and Writes so that the data flow is
// fully visible without parsing command lines.
//
// [Validate] checks the wiring invariants (every FIFO declared and used
// by exactly one writer and one reader, pipes paired, files written
// once, no cycles). [Graph.LaunchOrder] gives consumers before
// producers. [Graph.Hash] is the graph identity: a keyed BLAKE3 hash of
// the deterministic CBOR encoding, recorded in run state and result
// logs so that two runs can be compared by what they wired.
package graph
