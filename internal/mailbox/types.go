package mailbox

import (
	"fmt"
	"time"

	"github.com/Iron-Ham/crew/internal/errors"
)

// Kind identifies the protocol meaning of a message. The store itself
// is agnostic to these semantics; it only validates the payload shape
// and guarantees ordered delivery.
type Kind string

const (
	// KindPlain is a free-form message between agents.
	KindPlain Kind = "plain"

	// KindTaskAssignment notifies an agent it now owns a task.
	KindTaskAssignment Kind = "task_assignment"

	// KindShutdownRequest asks an agent to shut down (or, sent to the
	// lead, asks permission to).
	KindShutdownRequest Kind = "shutdown_request"

	// KindShutdownApproval answers a shutdown_request.
	KindShutdownApproval Kind = "shutdown_approval"

	// KindPlanRequest submits a plan for approval.
	KindPlanRequest Kind = "plan_request"

	// KindPlanApproval answers a plan_request.
	KindPlanApproval Kind = "plan_approval"
)

// Broadcast is the reserved recipient meaning "every other member".
// Only the lead may use it.
const Broadcast = "broadcast"

// Payload is the structured content of a message. Which fields are
// required depends on the Kind; Validate enforces the shape per kind at
// construction time.
type Payload struct {
	// Content is the message body (plain, plan_request) or an optional
	// human-readable note on protocol kinds.
	Content string `json:"content,omitempty"`

	// Summary is a short description shown in rosters and dashboards
	Summary string `json:"summary,omitempty"`

	// TaskID and Title identify the task on task_assignment
	TaskID int    `json:"taskId,omitempty"`
	Title  string `json:"title,omitempty"`

	// RequestID correlates request/approval pairs
	RequestID string `json:"requestId,omitempty"`

	// Approved answers a request on approval kinds
	Approved *bool `json:"approved,omitempty"`
}

// Message is one entry in an agent's inbox. Messages are immutable once
// written; only the read flag transitions false to true.
type Message struct {
	// ID is monotonic per inbox, assigned by the writer under lock
	ID int `json:"id"`

	// From is the sender's agent name
	From string `json:"from"`

	// To is the recipient's agent name (never "broadcast"; broadcast is
	// expanded into per-recipient messages at send time)
	To string `json:"to"`

	Kind    Kind    `json:"kind"`
	Payload Payload `json:"payload"`

	// CreatedAt is an RFC 3339 timestamp
	CreatedAt string `json:"created_at"`

	Read bool `json:"read"`
}

// Validate checks that the payload carries the fields its kind requires.
func (m *Message) Validate() error {
	switch m.Kind {
	case KindPlain:
		if m.Payload.Content == "" {
			return errors.NewValidationError("payload.content", "", "plain message requires content")
		}
	case KindTaskAssignment:
		if m.Payload.TaskID <= 0 {
			return errors.NewValidationError("payload.taskId",
				fmt.Sprintf("%d", m.Payload.TaskID), "task assignment requires a positive task id")
		}
	case KindShutdownRequest, KindPlanRequest:
		if m.Payload.RequestID == "" {
			return errors.NewValidationError("payload.requestId", "",
				string(m.Kind)+" requires a request id")
		}
	case KindShutdownApproval, KindPlanApproval:
		if m.Payload.RequestID == "" {
			return errors.NewValidationError("payload.requestId", "",
				string(m.Kind)+" requires a request id")
		}
		if m.Payload.Approved == nil {
			return errors.NewValidationError("payload.approved", "",
				string(m.Kind)+" requires an approved flag")
		}
	default:
		return errors.NewValidationError("kind", string(m.Kind), "unknown message kind")
	}
	return nil
}

// RenderText renders the message the way it is injected into a bridged
// agent's terminal: a sender signature followed by the body.
func (m *Message) RenderText() string {
	return fmt.Sprintf("[Message from %s]: %s", m.From, m.bodyText())
}

// bodyText renders the payload for human consumption.
func (m *Message) bodyText() string {
	switch m.Kind {
	case KindTaskAssignment:
		if m.Payload.Title != "" {
			return fmt.Sprintf("You have been assigned task #%d: %s", m.Payload.TaskID, m.Payload.Title)
		}
		return fmt.Sprintf("You have been assigned task #%d", m.Payload.TaskID)
	case KindShutdownRequest:
		if m.Payload.Content != "" {
			return fmt.Sprintf("Please finish up and shut down. Reason: %s", m.Payload.Content)
		}
		return "Please finish up and shut down."
	case KindShutdownApproval, KindPlanApproval:
		verdict := "denied"
		if m.Payload.Approved != nil && *m.Payload.Approved {
			verdict = "approved"
		}
		return fmt.Sprintf("Request %s was %s.", m.Payload.RequestID, verdict)
	default:
		return m.Payload.Content
	}
}

// nowISO returns the current time in RFC 3339 format.
func nowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}
