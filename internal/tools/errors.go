package tools

import (
	"errors"
	"fmt"
)

// Tool registry errors.
var (
	// ErrToolNameEmpty is returned when a tool has no name.
	ErrToolNameEmpty = errors.New("tool name cannot be empty")

	// ErrToolExecuteNil is returned when a tool has no execute function.
	ErrToolExecuteNil = errors.New("tool execute function cannot be nil")

	// ErrToolAlreadyRegistered is returned when registering a duplicate.
	ErrToolAlreadyRegistered = errors.New("tool already registered")

	// ErrToolInvocation is the parent of every bad-call error. It is reported
	// to the model as an observation so it can correct itself.
	ErrToolInvocation = errors.New("tool invocation error")

	// ErrUnknownTool is returned when the action names no registered tool.
	ErrUnknownTool = fmt.Errorf("unknown tool: %w", ErrToolInvocation)

	// ErrInvalidArguments is returned when arguments do not match the schema.
	ErrInvalidArguments = fmt.Errorf("invalid arguments: %w", ErrToolInvocation)

	// ErrToolPanic is returned when a tool panics during execution.
	ErrToolPanic = errors.New("tool panicked")
)
