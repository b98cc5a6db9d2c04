package logger

import (
	"log"
	"os"
)

// Logger is the logging surface shared by every component.
//
// Arguments after msg are printed with %+v; an error argument keeps its stack
// when it was wrapped with github.com/pkg/errors.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

type Std struct {
	std   *log.Logger
	debug bool
}

var _ Logger = (*Std)(nil)

func NewStd(prefix string, debug bool) *Std {
	return &Std{
		std:   log.New(os.Stderr, prefix, log.LstdFlags|log.Lmicroseconds),
		debug: debug,
	}
}

// FromLog wraps an existing *log.Logger, mostly for tests writing into a buffer.
func FromLog(l *log.Logger, debug bool) *Std {
	return &Std{std: l, debug: debug}
}

func (l *Std) print(level, msg string, args []interface{}) {
	l.std.Printf("%s %s", level, msg)
	for _, arg := range args {
		l.std.Printf("  %+v", arg)
	}
}

func (l *Std) Debug(msg string, args ...interface{}) {
	if l.debug {
		l.print("DEBUG", msg, args)
	}
}

func (l *Std) Info(msg string, args ...interface{})  { l.print("INFO", msg, args) }
func (l *Std) Warn(msg string, args ...interface{})  { l.print("WARN", msg, args) }
func (l *Std) Error(msg string, args ...interface{}) { l.print("ERROR", msg, args) }

type nop struct{}

func (nop) Debug(string, ...interface{}) {}
func (nop) Info(string, ...interface{})  {}
func (nop) Warn(string, ...interface{})  {}
func (nop) Error(string, ...interface{}) {}

// Nop discards everything.
func Nop() Logger { return nop{} }
