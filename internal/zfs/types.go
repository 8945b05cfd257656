package zfs

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

const (
	// TimeFormat is the layout of the timestamp part of managed snapshot names.
	TimeFormat = "2006-01-02_1504"

	// DefaultBinary is the zfs binary invoked when no base command is configured.
	DefaultBinary = "/sbin/zfs"

	// DefaultSudo is the elevation wrapper used when none is configured.
	DefaultSudo = "/usr/bin/sudo"
)

// ToolError is returned whenever the process that determines the outcome of
// an invocation exits non-zero (or cannot be started at all).
type ToolError struct {
	Command  []string
	Stderr   string
	ExitCode int // -1 when the process did not exit normally
	Err      error
}

// Error implements the error interface.
func (e *ToolError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("failed to execute %s: %s", strings.Join(e.Command, " "), msg)
}

// Unwrap returns the underlying exec error.
func (e *ToolError) Unwrap() error {
	return e.Err
}

func newToolError(argv []string, stderr string, err error) *ToolError {
	code := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.ExitCode()
	}
	return &ToolError{
		Command:  append([]string(nil), argv...),
		Stderr:   stderr,
		ExitCode: code,
		Err:      err,
	}
}
