package log

import (
	"bytes"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferEntry(level logrus.Level) (*logrus.Entry, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	logger := logrus.New()
	logger.SetOutput(buf)
	logger.SetLevel(level)
	return logrus.NewEntry(logger), buf
}

func TestBadgerLogrusAdapter_Levels(t *testing.T) {
	entry, buf := newBufferEntry(logrus.InfoLevel)
	adapter := NewBadgerLogrusAdapter(entry)

	adapter.Infof("compaction %d\n", 1)
	adapter.Debugf("noise")
	assert.Empty(t, buf.String(), "badger info/debug stay below info level")

	adapter.Warningf("disk %s", "slow")
	adapter.Errorf("write failed\n")
	out := buf.String()
	assert.Contains(t, out, "disk slow")
	assert.Contains(t, out, "write failed")
	assert.Contains(t, out, "component=badger")
}

func TestChromeLoggers(t *testing.T) {
	entry, buf := newBufferEntry(logrus.DebugLevel)
	logf, errorf, debugf := ChromeLoggers(entry)

	logf("tab %s", "opened")
	errorf("unhandled event %q", "Page.foo")
	debugf("raw frame")

	out := buf.String()
	assert.Contains(t, out, "tab opened")
	assert.Contains(t, out, "unhandled event")
	assert.NotContains(t, out, "raw frame", "protocol frames are trace level")
	assert.Contains(t, out, "component=chromedp")
}

func TestNew(t *testing.T) {
	logger, err := New("debug", io.Discard)
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())

	logger, err = New("loud", io.Discard)
	assert.Error(t, err)
	require.NotNil(t, logger)
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
}
