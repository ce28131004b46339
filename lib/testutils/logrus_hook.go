package testutils

import (
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// SimpleLogrusHook implements logrus.Hook and records emitted entries so
// tests can assert on what was logged.
type SimpleLogrusHook struct {
	HookedLevels []logrus.Level
	mutex        sync.Mutex
	messageCache []logrus.Entry
}

var _ logrus.Hook = &SimpleLogrusHook{}

// NewLogHook creates a new SimpleLogrusHook for the given levels, or all
// levels when none are specified.
func NewLogHook(levels ...logrus.Level) *SimpleLogrusHook {
	if len(levels) == 0 {
		levels = logrus.AllLevels
	}
	return &SimpleLogrusHook{HookedLevels: levels}
}

// Levels returns the levels the hook is registered for.
func (h *SimpleLogrusHook) Levels() []logrus.Level {
	return h.HookedLevels
}

// Fire records the entry.
func (h *SimpleLogrusHook) Fire(e *logrus.Entry) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.messageCache = append(h.messageCache, *e)
	return nil
}

// Drain returns the recorded entries and clears the cache.
func (h *SimpleLogrusHook) Drain() []logrus.Entry {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	res := h.messageCache
	h.messageCache = nil
	return res
}

// LogContains checks the given entries for a message with the expected level
// and contents.
func LogContains(logEntries []logrus.Entry, expLevel logrus.Level, expContents string) bool {
	for _, entry := range logEntries {
		if entry.Level == expLevel && strings.Contains(entry.Message, expContents) {
			return true
		}
	}
	return false
}
