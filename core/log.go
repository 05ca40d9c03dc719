package core

import "fmt"

// Log is the ordered record of a conversation.
//
// A Log is owned by exactly one agent run at a time and is only ever
// appended to while that run is in progress. Every assistant message with k
// tool calls is followed directly by k tool messages answering those calls
// in request order.
type Log []Message

// Append adds messages to the end of the log.
func (l *Log) Append(msgs ...Message) {
	*l = append(*l, msgs...)
}

// Len returns the number of messages.
func (l Log) Len() int { return len(l) }

// Clone returns a deep copy of the log.
func (l Log) Clone() Log {
	if l == nil {
		return Log{}
	}
	c := make(Log, len(l))
	for i, m := range l {
		c[i] = m.Clone()
	}
	return c
}

// Last returns the last message, if any.
func (l Log) Last() (Message, bool) {
	if len(l) == 0 {
		return Message{}, false
	}
	return l[len(l)-1], true
}

// Since returns a copy of the messages appended after the first n.
func (l Log) Since(n int) Log {
	if n < 0 {
		n = 0
	}
	if n >= len(l) {
		return Log{}
	}
	return l[n:].Clone()
}

// Filter returns a copy of the messages for which keep returns true.
func (l Log) Filter(keep func(Message) bool) Log {
	out := Log{}
	for _, m := range l {
		if keep(m) {
			out = append(out, m.Clone())
		}
	}
	return out
}

// FinalMessage returns the most recent assistant reply without tool calls.
func (l Log) FinalMessage() (Message, bool) {
	for i := len(l) - 1; i >= 0; i-- {
		if l[i].IsFinal() {
			return l[i], true
		}
	}
	return Message{}, false
}

// Validate checks roles and the tool call correlation invariant. A log may
// end with unanswered tool calls; use PendingToolCalls to detect that.
func (l Log) Validate() error {
	var pending []ToolCall
	for i, m := range l {
		if !m.Role.Valid() {
			return fmt.Errorf("%w: message %d has unknown role %q", ErrInvalidLog, i, m.Role)
		}

		if len(pending) > 0 {
			if m.Role != RoleTool {
				return fmt.Errorf("%w: message %d: expected tool result for call %s, got %s message", ErrInvalidLog, i, pending[0].ID, m.Role)
			}
			if m.ToolCallID != pending[0].ID {
				return fmt.Errorf("%w: message %d: tool result %q does not answer call %q", ErrInvalidLog, i, m.ToolCallID, pending[0].ID)
			}
			pending = pending[1:]
			continue
		}

		switch m.Role {
		case RoleTool:
			return fmt.Errorf("%w: message %d: tool result %q has no matching call", ErrInvalidLog, i, m.ToolCallID)
		case RoleAssistant:
			if len(m.ToolCalls) == 0 {
				continue
			}
			seen := make(map[string]struct{}, len(m.ToolCalls))
			for _, tc := range m.ToolCalls {
				if tc.ID == "" {
					return fmt.Errorf("%w: message %d: tool call %q has no id", ErrInvalidLog, i, tc.Name)
				}
				if _, dup := seen[tc.ID]; dup {
					return fmt.Errorf("%w: message %d: duplicate tool call id %q", ErrInvalidLog, i, tc.ID)
				}
				seen[tc.ID] = struct{}{}
			}
			pending = append(pending[:0], m.ToolCalls...)
		}
	}
	return nil
}

// PendingToolCalls returns the calls of a trailing assistant message that
// have not been answered yet, in request order.
func (l Log) PendingToolCalls() []ToolCall {
	answered := 0
	i := len(l) - 1
	for ; i >= 0 && l[i].Role == RoleTool; i-- {
		answered++
	}
	if i < 0 || l[i].Role != RoleAssistant || answered >= len(l[i].ToolCalls) {
		return nil
	}
	return append([]ToolCall(nil), l[i].ToolCalls[answered:]...)
}

// CloseDanglingCalls answers every pending tool call with an error tool
// message and returns how many messages were appended. It is used before a
// new run starts on a log whose previous run was aborted mid tool turn, so
// side-effecting tools are never re-executed implicitly.
func (l *Log) CloseDanglingCalls(author, reason string) int {
	pending := l.PendingToolCalls()
	for _, tc := range pending {
		l.Append(NewToolErrorMessage(author, tc, fmt.Errorf("%w: %s", ErrAborted, reason)))
	}
	return len(pending)
}
