package logger

import (
	"github.com/rollbar/rollbar-go"
	rollbarerrors "github.com/rollbar/rollbar-go/errors"

	"campus/portal/internal/model"
)

// Rollbar forwards every entry to rollbar and echoes it on the wrapped logger.
type Rollbar struct {
	std *Std
}

var _ Logger = (*Rollbar)(nil)

func NewRollbar(std *Std, token, env, version string) *Rollbar {
	rollbar.SetToken(token)
	rollbar.SetEnvironment(env)
	rollbar.SetCodeVersion(version)
	rollbar.SetStackTracer(rollbarerrors.StackTracer)
	return &Rollbar{std: std}
}

// prepare strips a model.Identity argument and attaches it as the rollbar person.
func (l *Rollbar) prepare(msg string, args []interface{}) []interface{} {
	var personSet bool
	out := make([]interface{}, 0, len(args)+1)
	out = append(out, msg)
	for _, arg := range args {
		if id, ok := arg.(model.Identity); ok {
			if !personSet {
				rollbar.SetPerson(id.ID, id.Name, id.Email)
				personSet = true
			}
			continue
		}
		out = append(out, arg)
	}
	if !personSet {
		rollbar.ClearPerson()
	}
	return out
}

func (l *Rollbar) Debug(msg string, args ...interface{}) {
	rollbar.Debug(l.prepare(msg, args)...)
	l.std.Debug(msg, args...)
}

func (l *Rollbar) Info(msg string, args ...interface{}) {
	rollbar.Info(l.prepare(msg, args)...)
	l.std.Info(msg, args...)
}

func (l *Rollbar) Warn(msg string, args ...interface{}) {
	rollbar.Warning(l.prepare(msg, args)...)
	l.std.Warn(msg, args...)
}

func (l *Rollbar) Error(msg string, args ...interface{}) {
	rollbar.Error(l.prepare(msg, args)...)
	l.std.Error(msg, args...)
}

// Close flushes queued items.
func (l *Rollbar) Close() {
	rollbar.Close()
}
