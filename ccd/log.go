package ccd

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Level is a bit field categorizing a log message
type Level uint

const (
	// LogGeneral marks messages from the session and driver registry
	LogGeneral Level = 1 << iota

	// LogConfig marks configuration lookups
	LogConfig

	// LogSetup marks startup, dimensions and shutdown
	LogSetup

	// LogExposure marks the exposure state machine
	LogExposure

	// LogTemperature marks temperature control
	LogTemperature

	// LogAll has every category bit set
	LogAll = LogGeneral | LogConfig | LogSetup | LogExposure | LogTemperature
)

var levelNames = []struct {
	bit  Level
	name string
}{
	{LogGeneral, "general"},
	{LogConfig, "config"},
	{LogSetup, "setup"},
	{LogExposure, "exposure"},
	{LogTemperature, "temperature"},
}

func (l Level) String() string {
	var parts []string
	for _, n := range levelNames {
		if l&n.bit != 0 {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return fmt.Sprintf("Level(%d)", uint(l))
	}
	return strings.Join(parts, "|")
}

// ParseLevel reads a comma separated list of category names, or "all"
func ParseLevel(s string) (Level, error) {
	var l Level
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "all" {
			l |= LogAll
			continue
		}
		found := false
		for _, n := range levelNames {
			if n.name == part {
				l |= n.bit
				found = true
				break
			}
		}
		if !found {
			return 0, Errorf(InvalidArgument, "ParseLevel", "unknown log category %q", part)
		}
	}
	return l, nil
}

// Handler receives a message which passed the filter
type Handler func(level Level, msg string)

// Filter decides if a message should reach the handler
type Filter func(level Level, msg string) bool

// Logger routes messages to a single handler through an optional filter.
// With no handler, messages are dropped.  A nil *Logger is valid and drops
// everything.
type Logger struct {
	mu      sync.RWMutex
	handler Handler
	filter  Filter
}

// NewLogger returns a logger with the given handler and filter, either of
// which may be nil
func NewLogger(h Handler, f Filter) *Logger {
	return &Logger{handler: h, filter: f}
}

// SetHandler replaces the handler
func (l *Logger) SetHandler(h Handler) {
	l.mu.Lock()
	l.handler = h
	l.mu.Unlock()
}

// SetFilter replaces the filter.  nil passes every message.
func (l *Logger) SetFilter(f Filter) {
	l.mu.Lock()
	l.filter = f
	l.mu.Unlock()
}

// Log sends msg to the handler if there is one and the filter accepts it
func (l *Logger) Log(level Level, msg string) {
	if l == nil {
		return
	}
	l.mu.RLock()
	h, f := l.handler, l.filter
	l.mu.RUnlock()
	if h == nil {
		return
	}
	if f != nil && !f(level, msg) {
		return
	}
	h(level, msg)
}

// Logf formats and logs a message
func (l *Logger) Logf(level Level, format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.Log(level, fmt.Sprintf(format, args...))
}

// AbsoluteFilter passes messages whose level is at most max
func AbsoluteFilter(max Level) Filter {
	return func(level Level, msg string) bool {
		return level <= max
	}
}

// BitwiseFilter passes messages sharing at least one bit with mask
func BitwiseFilter(mask Level) Filter {
	return func(level Level, msg string) bool {
		return level&mask != 0
	}
}

// StdoutHandler prints each message on its own line to stdout
func StdoutHandler(level Level, msg string) {
	fmt.Fprintln(os.Stdout, msg)
}

// LogrusHandler forwards messages to a logrus logger at info level, with
// the category bits in the "category" field
func LogrusHandler(fl logrus.FieldLogger) Handler {
	return func(level Level, msg string) {
		fl.WithField("category", level.String()).Info(msg)
	}
}
