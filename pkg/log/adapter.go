package log

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// BadgerLogrusAdapter implements badger.Logger on a logrus entry.
// Badger's info chatter is demoted to debug.
type BadgerLogrusAdapter struct {
	*logrus.Entry
}

// NewBadgerLogrusAdapter creates a new adapter
func NewBadgerLogrusAdapter(entry *logrus.Entry) *BadgerLogrusAdapter {
	return &BadgerLogrusAdapter{entry.WithField("component", "badger")}
}

func (l *BadgerLogrusAdapter) Errorf(f string, v ...any)   { l.Entry.Errorf(trimNewline(f), v...) }
func (l *BadgerLogrusAdapter) Warningf(f string, v ...any) { l.Entry.Warnf(trimNewline(f), v...) }
func (l *BadgerLogrusAdapter) Infof(f string, v ...any)    { l.Entry.Debugf(trimNewline(f), v...) }
func (l *BadgerLogrusAdapter) Debugf(f string, v ...any)   { l.Entry.Tracef(trimNewline(f), v...) }

// ChromeLoggers returns printf-style sinks for chromedp's WithLogf,
// WithErrorf and WithDebugf options.
func ChromeLoggers(entry *logrus.Entry) (logf, errorf, debugf func(string, ...any)) {
	e := entry.WithField("component", "chromedp")
	logf = func(f string, v ...any) { e.Debugf(trimNewline(f), v...) }
	errorf = func(f string, v ...any) { e.Warnf(trimNewline(f), v...) }
	debugf = func(f string, v ...any) { e.Tracef(trimNewline(f), v...) }
	return logf, errorf, debugf
}

func trimNewline(f string) string {
	return strings.TrimRight(f, "\n")
}
