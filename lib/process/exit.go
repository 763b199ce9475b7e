// Copyright 2026 The Kwire Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"fmt"
	"io"
	"os"
)

// ExitCoder is implemented by errors that carry a process exit code.
type ExitCoder interface {
	ExitCode() int
}

// Fatal writes "error: err" to stderr and exits. The exit code comes
// from err when it implements ExitCoder, and is 1 otherwise.
func Fatal(err error) {
	os.Exit(Report(os.Stderr, err))
}

// Report writes err to w the way Fatal does and returns the exit code
// Fatal would use.
func Report(w io.Writer, err error) int {
	fmt.Fprintf(w, "error: %v\n", err)
	if coder, ok := err.(ExitCoder); ok && coder.ExitCode() > 0 {
		return coder.ExitCode()
	}
	return 1
}
