package agent

import (
	"errors"
	"strings"

	"campusnerd/internal/extract"
	"campusnerd/internal/llm"
)

// Fixed messages for states that ended without an answer.
const (
	FallbackExceeded = "I could not reach a conclusive answer within the allowed number of steps. " +
		"Please try asking again, perhaps more specifically."
	FallbackAborted = "The request was stopped before a conclusive answer was reached."
	FallbackAuth    = "Your learning platform session has expired, so I could not retrieve your data. " +
		"Please log in again and retry."
	FallbackBackend = "The language model could not be reached, so no answer was produced."
)

// Synthesize formats the user-visible answer for a terminated state. It only
// formats: it never retrieves or reasons further.
func Synthesize(state *State) string {
	switch state.Reason {
	case Answered:
		if answer := strings.TrimSpace(state.Answer); answer != "" {
			return answer
		}
		return FallbackExceeded
	case ExceededLimit:
		return FallbackExceeded
	default:
		switch {
		case errors.Is(state.Err, extract.ErrAuthentication):
			return FallbackAuth
		case errors.Is(state.Err, llm.ErrBackend):
			return FallbackBackend
		default:
			return FallbackAborted
		}
	}
}
