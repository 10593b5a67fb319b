// Package transcript holds the ordered conversation log shared between
// the crawl loop and the model.
//
// The log is append-only: the system turn is written once at
// construction and every later turn is appended at the end. Insertion
// order is the model's context, so nothing is ever edited or removed.
package transcript

// Role tags a turn with its conversational author.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one entry in the conversation. ImageB64, when non-empty, is a
// base64-encoded JPEG attached alongside the text.
type Turn struct {
	Role     Role
	Text     string
	ImageB64 string
}

// Log is an append-only sequence of turns. The zero value is not
// usable; create one with New so the system turn is always first.
type Log struct {
	turns []Turn
}

// New creates a log whose first turn is the given system prompt.
func New(systemPrompt string) *Log {
	return &Log{turns: []Turn{{Role: RoleSystem, Text: systemPrompt}}}
}

// AppendUser appends a plain user turn.
func (l *Log) AppendUser(text string) {
	l.turns = append(l.turns, Turn{Role: RoleUser, Text: text})
}

// AppendUserImage appends a user turn carrying an image attachment.
func (l *Log) AppendUserImage(text, imageB64 string) {
	l.turns = append(l.turns, Turn{Role: RoleUser, Text: text, ImageB64: imageB64})
}

// AppendAssistant appends an assistant turn.
func (l *Log) AppendAssistant(text string) {
	l.turns = append(l.turns, Turn{Role: RoleAssistant, Text: text})
}

// Turns returns a copy of the log. Callers may not mutate the log
// through the returned slice.
func (l *Log) Turns() []Turn {
	out := make([]Turn, len(l.turns))
	copy(out, l.turns)
	return out
}

// Len reports the number of turns, including the system turn.
func (l *Log) Len() int { return len(l.turns) }

// System returns the system prompt the log was created with.
func (l *Log) System() string { return l.turns[0].Text }

// Last returns the most recently appended turn.
func (l *Log) Last() Turn { return l.turns[len(l.turns)-1] }

// Fork returns an independent copy of the log. Appends to either log
// do not affect the other; used to snapshot conversation state in tests
// and for the single-shot vision call, which re-frames the transcript
// without polluting the original.
func (l *Log) Fork() *Log {
	turns := make([]Turn, len(l.turns))
	copy(turns, l.turns)
	return &Log{turns: turns}
}
