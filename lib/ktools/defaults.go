// Copyright 2026 The Kwire Authors
// SPDX-License-Identifier: Apache-2.0

package ktools

import "fmt"

// Allocation rule bounds and defaults. gulcalc rules:
//
//	0 = default without back allocation
//	1 = default with back allocation
//	2 = total loss is maximum subperil loss
//	3 = total loss using multiplicative method
const (
	MaxAllocGUL     = 3
	MaxAllocFM      = 3
	DefaultAllocGUL = 0
	DefaultAllocIL  = 2
	DefaultAllocRI  = 3
)

// DefaultNumProcesses means "one partition per CPU".
const DefaultNumProcesses = -1

// Shuffle is the eve event shuffle rule.
type Shuffle int

const (
	ShuffleNone        Shuffle = 0
	ShuffleRoundRobin  Shuffle = 1
	ShuffleFisherYates Shuffle = 2
	ShuffleStandard    Shuffle = 3

	DefaultShuffle = ShuffleRoundRobin
)

// String returns the shuffle rule name.
func (s Shuffle) String() string {
	switch s {
	case ShuffleNone:
		return "none"
	case ShuffleRoundRobin:
		return "round-robin"
	case ShuffleFisherYates:
		return "fisher-yates"
	case ShuffleStandard:
		return "standard"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// flag returns the eve flag selecting the rule. Round robin is eve's
// own default and needs no flag.
func (s Shuffle) flag() string {
	switch s {
	case ShuffleNone:
		return "-n"
	case ShuffleFisherYates:
		return "-r"
	case ShuffleStandard:
		return "-R"
	default:
		return ""
	}
}

// Valid reports whether s is a known rule.
func (s Shuffle) Valid() bool {
	return s >= ShuffleNone && s <= ShuffleStandard
}
