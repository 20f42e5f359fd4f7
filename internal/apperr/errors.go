// Package apperr holds the error vocabulary shared by the core and its HTTP/MCP surfaces.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrGone        = errors.New("gone")
	ErrNoMapping   = errors.New("no mapping")
	ErrInvalidName = errors.New("invalid name")
	ErrMissingBody = errors.New("missing document body")
)

// CompileError reports a defect found by the typesetting toolchain.
// Log carries the filtered, human-readable compiler log.
type CompileError struct {
	Log string
	Err error
}

func (e *CompileError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("compile failed: %v", e.Err)
	}
	return "compile failed"
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

// ToolingError reports that a helper tool misbehaved: the log filter
// crashed, or the coordinate mapper produced an unusable answer.
// Detail is the raw diagnostic output.
type ToolingError struct {
	Op     string
	Detail string
	Err    error
}

func (e *ToolingError) Error() string {
	switch {
	case e.Err != nil && e.Detail != "":
		return fmt.Sprintf("%s failed: %v: %s", e.Op, e.Err, e.Detail)
	case e.Err != nil:
		return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
	case e.Detail != "":
		return fmt.Sprintf("%s failed: %s", e.Op, e.Detail)
	}
	return e.Op + " failed"
}

func (e *ToolingError) Unwrap() error {
	return e.Err
}
