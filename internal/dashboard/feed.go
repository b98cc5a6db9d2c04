package dashboard

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// UI is the toast surface the dashboards report to.
type UI interface {
	Info(msg string)
	Success(msg string)
	Error(msg string)
}

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

type Message struct {
	Level Level     `json:"level"`
	Text  string    `json:"text"`
	At    time.Time `json:"at"`
}

// Feed keeps the most recent messages and optionally echoes them to a writer.
type Feed struct {
	out   io.Writer
	limit int

	mu       sync.Mutex
	messages []Message
}

var _ UI = (*Feed)(nil)

// NewFeed keeps up to limit messages (50 when limit <= 0). out may be nil.
func NewFeed(out io.Writer, limit int) *Feed {
	if limit <= 0 {
		limit = 50
	}
	return &Feed{out: out, limit: limit}
}

func (f *Feed) Info(msg string)    { f.add(LevelInfo, msg) }
func (f *Feed) Success(msg string) { f.add(LevelSuccess, msg) }
func (f *Feed) Error(msg string)   { f.add(LevelError, msg) }

func (f *Feed) add(level Level, text string) {
	m := Message{Level: level, Text: text, At: time.Now().UTC()}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, m)
	if over := len(f.messages) - f.limit; over > 0 {
		f.messages = append([]Message(nil), f.messages[over:]...)
	}
	if f.out != nil {
		fmt.Fprintf(f.out, "[%s] %s\n", level, text)
	}
}

// Messages returns a copy, oldest first.
func (f *Feed) Messages() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Message(nil), f.messages...)
}

// Texts returns the texts of messages at level.
func (f *Feed) Texts(level Level) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, m := range f.messages {
		if m.Level == level {
			out = append(out, m.Text)
		}
	}
	return out
}
