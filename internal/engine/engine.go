// Package engine adapts the embedded command interpreter to the worker.
//
// The interpreter calls back into the host synchronously while a command is
// executing. Those callbacks go through the Host capability handed to the
// engine at construction time.
package engine

import (
	"context"

	"github.com/cbegin/athenacl-go/internal/protocol"
)

// UnknownError is reported when the interpreter fails without a message.
const UnknownError = "Unknown error"

// Result is the outcome of a command that ran to completion. OK is false when
// the command itself reported failure; Payload then carries its message.
type Result struct {
	OK      bool
	Payload string
}

// Engine executes commands. A non-nil error from Execute is an
// interpreter-level fault rather than a command failure.
type Engine interface {
	Execute(ctx context.Context, command string) (Result, error)
	ScratchDir() string
}

// Host is the capability the engine uses to reach the outside world while a
// command runs. Ask blocks until the user answers.
type Host interface {
	Post(text string)
	Ask(prompt string) (string, error)
	Notify(ev protocol.Event)
}

// Factory builds an engine bound to host. It is called once, on the worker
// goroutine.
type Factory func(host Host) (Engine, error)

// Fault is an interpreter-level error: a malformed script, a misused host
// callback, or an internal failure.
type Fault struct {
	Msg string
	Err error
}

func (f *Fault) Error() string {
	switch {
	case f.Msg != "":
		return f.Msg
	case f.Err != nil && f.Err.Error() != "":
		return f.Err.Error()
	default:
		return UnknownError
	}
}

func (f *Fault) Unwrap() error { return f.Err }
