package tools

import (
	"context"
	"errors"
	"fmt"
	"time"

	"campusnerd/internal/extract"
)

// ErrorKind classifies a failed invocation for the model and the caller.
type ErrorKind string

const (
	KindNone           ErrorKind = ""
	KindAuth           ErrorKind = "auth"
	KindScrapeParse    ErrorKind = "scrape_parse"
	KindNetwork        ErrorKind = "network"
	KindToolInvocation ErrorKind = "tool_invocation"
	KindCanceled       ErrorKind = "canceled"
	KindInternal       ErrorKind = "internal"
)

// Classify maps an error onto its ErrorKind.
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, extract.ErrAuthentication):
		return KindAuth
	case errors.Is(err, extract.ErrScrapeParse):
		return KindScrapeParse
	case errors.Is(err, extract.ErrNetwork):
		return KindNetwork
	case errors.Is(err, ErrToolInvocation):
		return KindToolInvocation
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	default:
		return KindInternal
	}
}

var kindHints = map[ErrorKind]string{
	KindAuth:           "the learning platform session has expired and the student must log in again",
	KindScrapeParse:    "the data could not be retrieved because the dashboard layout was not recognized",
	KindNetwork:        "the learning platform could not be reached after several attempts",
	KindToolInvocation: "the action or its input was invalid",
	KindCanceled:       "the request was canceled",
	KindInternal:       "the tool failed unexpectedly",
}

// Observation is the outcome of one action, success or failure.
type Observation struct {
	Tool     string
	Content  string
	Err      error
	Kind     ErrorKind
	Duration time.Duration
}

// Failed returns true if the invocation produced an error.
func (o Observation) Failed() bool {
	return o.Err != nil
}

// Text renders the observation for the model.
func (o Observation) Text() string {
	if o.Err == nil {
		return o.Content
	}
	return fmt.Sprintf("ERROR [%s]: %s. Details: %v", o.Kind, kindHints[o.Kind], o.Err)
}

func failed(tool string, err error, start time.Time) Observation {
	return Observation{
		Tool:     tool,
		Err:      err,
		Kind:     Classify(err),
		Duration: time.Since(start),
	}
}

// Rejected builds the observation for an action that never reached a tool,
// such as model output that could not be parsed.
func Rejected(tool string, err error) Observation {
	return failed(tool, err, time.Now())
}
