package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// =============================================================================
// AUDIT EVENT TYPES
// =============================================================================

// AuditEventType names one kind of question-lifecycle event.
type AuditEventType string

const (
	AuditQuestionStart AuditEventType = "question_start"
	AuditQuestionEnd   AuditEventType = "question_end"

	AuditLLMResponse AuditEventType = "llm_response"
	AuditLLMError    AuditEventType = "llm_error"

	AuditToolComplete AuditEventType = "tool_complete"
	AuditToolError    AuditEventType = "tool_error"
	AuditActionReject AuditEventType = "action_reject"
)

// AuditEvent is one JSON line of the audit trail. It records what the loop
// did, never the scraped records themselves.
type AuditEvent struct {
	Timestamp    int64          `json:"ts"` // Unix milliseconds
	EventType    AuditEventType `json:"event"`
	Conversation string         `json:"conversation"`
	Step         int            `json:"step,omitempty"`
	Target       string         `json:"target,omitempty"`
	Success      bool           `json:"success"`
	DurationMs   int64          `json:"dur_ms,omitempty"`
	Error        string         `json:"error,omitempty"`
	Fields       map[string]any `json:"fields,omitempty"`
}

// =============================================================================
// AUDIT LOGGER
// =============================================================================

var (
	auditMu     sync.Mutex
	auditOut    io.Writer
	auditCloser io.Closer
)

// InitAudit appends audit events to path. An empty path disables auditing.
func InitAudit(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create audit dir: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}

	auditMu.Lock()
	defer auditMu.Unlock()
	if auditCloser != nil {
		auditCloser.Close()
	}
	auditOut, auditCloser = file, file
	return nil
}

// SetAuditWriter redirects audit events to w (nil disables).
func SetAuditWriter(w io.Writer) {
	auditMu.Lock()
	defer auditMu.Unlock()
	auditOut, auditCloser = w, nil
}

// CloseAudit closes the audit log file.
func CloseAudit() {
	auditMu.Lock()
	defer auditMu.Unlock()

	if auditCloser != nil {
		auditCloser.Close()
	}
	auditOut, auditCloser = nil, nil
}

// AuditLogger stamps events with a conversation ID.
type AuditLogger struct {
	conversation string
}

// AuditWithConversation creates an audit logger scoped to one question.
func AuditWithConversation(id string) *AuditLogger {
	return &AuditLogger{conversation: id}
}

// Log writes an audit event. It is a no-op when auditing is disabled.
func (a *AuditLogger) Log(event AuditEvent) {
	auditMu.Lock()
	defer auditMu.Unlock()

	if auditOut == nil {
		return
	}
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}
	if event.Conversation == "" {
		event.Conversation = a.conversation
	}

	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	auditOut.Write(append(data, '\n'))
}

// QuestionStart records the beginning of a question.
func (a *AuditLogger) QuestionStart(maxSteps int) {
	a.Log(AuditEvent{
		EventType: AuditQuestionStart,
		Success:   true,
		Fields:    map[string]any{"max_steps": maxSteps},
	})
}

// QuestionEnd records how a question terminated.
func (a *AuditLogger) QuestionEnd(reason string, steps int, d time.Duration) {
	a.Log(AuditEvent{
		EventType:  AuditQuestionEnd,
		Step:       steps,
		Target:     reason,
		Success:    reason == "answered",
		DurationMs: d.Milliseconds(),
	})
}

// LLMCall records one completion.
func (a *AuditLogger) LLMCall(step int, model string, d time.Duration, tokens int, err error) {
	event := AuditEvent{
		EventType:  AuditLLMResponse,
		Step:       step,
		Target:     model,
		Success:    err == nil,
		DurationMs: d.Milliseconds(),
		Fields:     map[string]any{"tokens": tokens},
	}
	if err != nil {
		event.EventType = AuditLLMError
		event.Error = err.Error()
	}
	a.Log(event)
}

// ToolCall records one tool invocation outcome. kind is empty on success.
func (a *AuditLogger) ToolCall(step int, tool, kind string, d time.Duration, err error) {
	event := AuditEvent{
		EventType:  AuditToolComplete,
		Step:       step,
		Target:     tool,
		Success:    err == nil,
		DurationMs: d.Milliseconds(),
	}
	if err != nil {
		event.EventType = AuditToolError
		event.Error = err.Error()
		event.Fields = map[string]any{"kind": kind}
	}
	a.Log(event)
}

// ActionRejected records model output that named no runnable action.
func (a *AuditLogger) ActionRejected(step int, err error) {
	a.Log(AuditEvent{
		EventType: AuditActionReject,
		Step:      step,
		Error:     err.Error(),
	})
}
