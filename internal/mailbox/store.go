// Package mailbox implements per-agent message inboxes on the shared
// filesystem.
//
// Each agent owns one inbox file, an ordered JSON array of messages.
// Inboxes are append-only except for read-flag flips. Writers serialize
// through the team's inbox lock and derive the next message id from the
// current contents, so ids are strictly increasing regardless of which
// process appends.
package mailbox

import (
	"time"

	"github.com/Iron-Ham/crew/internal/errors"
	"github.com/Iron-Ham/crew/internal/filelock"
	"github.com/Iron-Ham/crew/internal/logging"
	"github.com/Iron-Ham/crew/internal/paths"
	"github.com/Iron-Ham/crew/internal/store"
	"github.com/Iron-Ham/crew/internal/team"
)

// Store sends and reads messages for one crew root. It is safe for
// concurrent use from unrelated processes.
type Store struct {
	root        string
	lockTimeout time.Duration
	registry    *team.Registry
	log         *logging.Logger
}

// NewStore creates a mailbox Store sharing the registry's root.
func NewStore(registry *team.Registry, lockTimeout time.Duration, log *logging.Logger) *Store {
	if log == nil {
		log = logging.Nop()
	}
	return &Store{
		root:        registry.Root(),
		lockTimeout: lockTimeout,
		registry:    registry,
		log:         log.WithComponent("mailbox"),
	}
}

// Receipt records one delivered copy of a sent message.
type Receipt struct {
	Recipient string
	MessageID int
}

// Send validates and delivers a message. The recipient is an agent name
// or Broadcast; broadcast is permitted only when the sender is the team
// lead and expands to every other member. Each copy is appended under
// the recipient's inbox lock with id = max existing id + 1.
func (s *Store) Send(teamName, from, to string, kind Kind, payload Payload) ([]Receipt, error) {
	t, err := s.registry.Read(teamName)
	if err != nil {
		return nil, err
	}

	sender, ok := t.Member(from)
	if !ok {
		return nil, errors.NewMailboxError("sender is not a team member", errors.ErrInvalidRecipient).
			WithTeam(teamName).WithAgent(from)
	}

	recipients, err := resolveRecipients(t, sender, to)
	if err != nil {
		return nil, err
	}

	msg := Message{
		From:      from,
		Kind:      kind,
		Payload:   payload,
		CreatedAt: nowISO(),
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	receipts := make([]Receipt, 0, len(recipients))
	for _, recipient := range recipients {
		id, err := s.append(teamName, recipient, msg)
		if err != nil {
			return receipts, err
		}
		receipts = append(receipts, Receipt{Recipient: recipient, MessageID: id})
	}

	s.log.Debug("message sent", "team", teamName, "from", from, "to", to,
		"kind", string(kind), "recipients", len(receipts))
	return receipts, nil
}

// resolveRecipients expands the recipient field into concrete agent names.
func resolveRecipients(t *team.Team, sender team.Agent, to string) ([]string, error) {
	if to == Broadcast {
		if sender.Role != team.RoleLead {
			return nil, errors.NewMailboxError("broadcast is restricted to the team lead", errors.ErrInvalidRecipient).
				WithTeam(t.Name).WithAgent(sender.Name)
		}
		var recipients []string
		for _, m := range t.Members {
			if m.Name != sender.Name && !m.State.IsTerminal() {
				recipients = append(recipients, m.Name)
			}
		}
		return recipients, nil
	}

	if _, ok := t.Member(to); !ok {
		return nil, errors.NewMailboxError("recipient is not a team member", errors.ErrInvalidRecipient).
			WithTeam(t.Name).WithAgent(to)
	}
	return []string{to}, nil
}

// append writes one copy of msg into the recipient's inbox under the
// inbox lock, assigning the next id.
func (s *Store) append(teamName, recipient string, msg Message) (int, error) {
	var id int
	err := s.withInboxLock(teamName, func() error {
		msgs, err := s.readFile(teamName, recipient)
		if err != nil {
			return err
		}

		id = 1
		for _, m := range msgs {
			if m.ID >= id {
				id = m.ID + 1
			}
		}

		msg.ID = id
		msg.To = recipient
		msgs = append(msgs, msg)
		return store.WriteJSON(paths.Inbox(s.root, teamName, recipient), msgs)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// ReadInbox returns the agent's messages in order. With markRead set,
// unread messages are flipped to read before returning; the returned
// snapshot preserves the pre-flip flags so the caller sees exactly what
// was newly delivered.
func (s *Store) ReadInbox(teamName, agent string, markRead bool) ([]Message, error) {
	if _, err := s.registry.Read(teamName); err != nil {
		return nil, err
	}

	if !markRead {
		return s.Peek(teamName, agent)
	}

	var snapshot []Message
	err := s.withInboxLock(teamName, func() error {
		msgs, err := s.readFile(teamName, agent)
		if err != nil {
			return err
		}

		snapshot = make([]Message, len(msgs))
		copy(snapshot, msgs)

		dirty := false
		for i := range msgs {
			if !msgs[i].Read {
				msgs[i].Read = true
				dirty = true
			}
		}
		if !dirty {
			return nil
		}
		return store.WriteJSON(paths.Inbox(s.root, teamName, agent), msgs)
	})
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

// Peek returns the agent's messages without mutating read flags and
// without locking. Atomic writes guarantee it sees a committed state.
func (s *Store) Peek(teamName, agent string) ([]Message, error) {
	return s.readFile(teamName, agent)
}

// ReadFrom drains the agent's unread messages from one sender: it flips
// their read flags and returns them, newest last. A positive limit
// bounds the result to the most recent matches.
func (s *Store) ReadFrom(teamName, agent, sender string, limit int) ([]Message, error) {
	if _, err := s.registry.Read(teamName); err != nil {
		return nil, err
	}

	var matched []Message
	err := s.withInboxLock(teamName, func() error {
		msgs, err := s.readFile(teamName, agent)
		if err != nil {
			return err
		}

		matched = matched[:0]
		dirty := false
		for i := range msgs {
			if msgs[i].From != sender || msgs[i].Read {
				continue
			}
			matched = append(matched, msgs[i])
			msgs[i].Read = true
			dirty = true
		}
		if !dirty {
			return nil
		}
		return store.WriteJSON(paths.Inbox(s.root, teamName, agent), msgs)
	})
	if err != nil {
		return nil, err
	}

	if limit > 0 && len(matched) > limit {
		matched = matched[len(matched)-limit:]
	}
	return matched, nil
}

// UnreadCount returns how many of the agent's messages are unread.
func (s *Store) UnreadCount(teamName, agent string) (int, error) {
	msgs, err := s.readFile(teamName, agent)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, m := range msgs {
		if !m.Read {
			count++
		}
	}
	return count, nil
}

// readFile loads an inbox file. A missing file is an empty inbox.
func (s *Store) readFile(teamName, agent string) ([]Message, error) {
	var msgs []Message
	if err := store.ReadJSON(paths.Inbox(s.root, teamName, agent), &msgs); err != nil {
		if errors.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return msgs, nil
}

// withInboxLock runs fn while holding the team's inbox lock.
func (s *Store) withInboxLock(teamName string, fn func() error) error {
	return filelock.WithLock(paths.InboxLock(s.root, teamName), s.lockTimeout, fn)
}
