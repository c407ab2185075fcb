package sample

import (
	"strings"

	"go.uber.org/zap/zapcore"
)

// Filter selects the entries a budget is interested in.
//
// The engine treats filters as opaque: Interested answers the static
// "could any entry at this level ever match" question from
// Core.Enabled, and Matches is evaluated per entry. Both must be cheap and
// allocation-free: they run on the hot path before any lock is taken.
type Filter interface {
	// Interested reports whether an entry at lvl could ever match.
	Interested(lvl zapcore.Level) bool

	// Matches reports whether the entry matches.
	Matches(ent zapcore.Entry) bool
}

// MinLevel returns a filter matching entries at lvl or above.
func MinLevel(lvl zapcore.Level) Filter { return minLevel(lvl) }

type minLevel zapcore.Level

func (m minLevel) Interested(lvl zapcore.Level) bool { return lvl >= zapcore.Level(m) }
func (m minLevel) Matches(ent zapcore.Entry) bool    { return ent.Level >= zapcore.Level(m) }

// Exact returns a filter matching entries at exactly lvl.
func Exact(lvl zapcore.Level) Filter { return exactLevel(lvl) }

type exactLevel zapcore.Level

func (e exactLevel) Interested(lvl zapcore.Level) bool { return lvl == zapcore.Level(e) }
func (e exactLevel) Matches(ent zapcore.Entry) bool    { return ent.Level == zapcore.Level(e) }

// Scoped returns a filter matching entries at lvl or above whose logger
// name equals prefix or sits beneath it ("http" matches "http" and
// "http.client", not "httpx").
func Scoped(prefix string, lvl zapcore.Level) Filter {
	return scoped{prefix: prefix, min: lvl}
}

type scoped struct {
	prefix string
	min    zapcore.Level
}

func (s scoped) Interested(lvl zapcore.Level) bool { return lvl >= s.min }

func (s scoped) Matches(ent zapcore.Entry) bool {
	if ent.Level < s.min {
		return false
	}
	if ent.LoggerName == s.prefix {
		return true
	}
	return len(ent.LoggerName) > len(s.prefix) &&
		strings.HasPrefix(ent.LoggerName, s.prefix) &&
		ent.LoggerName[len(s.prefix)] == '.'
}
