package log

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	level  string
	msg    string
	fields map[string]any
}

type testLogger struct {
	mu      sync.Mutex
	entries []entry
}

func (l *testLogger) add(level string, f map[string]any, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry{level: level, msg: msg, fields: f})
}

func (l *testLogger) Info(f map[string]any, msg string)  { l.add("INFO", f, msg) }
func (l *testLogger) Error(f map[string]any, msg string) { l.add("ERROR", f, msg) }
func (l *testLogger) Debug(f map[string]any, msg string) { l.add("DEBUG", f, msg) }
func (l *testLogger) Warn(f map[string]any, msg string)  { l.add("WARN", f, msg) }
func (l *testLogger) Panic(f map[string]any, msg string) { l.add("PANIC", f, msg) }
func (l *testLogger) Fatal(f map[string]any, msg string) { l.add("FATAL", f, msg) }

func TestActualZapLogger(t *testing.T) {
	Debug(map[string]any{
		"key1": "value1",
		"key2": 42,
		"err":  errors.New("boom"),
	}, "test debug")
	Info(nil, "test info")
	Warn(nil, "test warn")
	Error(nil, "test error")
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic, but none occurred")
		}
	}()
	Panic(nil, "test panic")
}

func TestSetLoggerAndGlobalLogging(t *testing.T) {
	orig := GetLogger()
	defer SetLogger(orig)
	tlog := &testLogger{}
	SetLogger(tlog)

	Info(nil, "info msg")
	Error(nil, "error msg")
	Debug(nil, "debug msg")
	Warn(nil, "warn msg")

	want := []string{"INFO:info msg", "ERROR:error msg", "DEBUG:debug msg", "WARN:warn msg"}
	require.Len(t, tlog.entries, len(want))
	for i, w := range want {
		assert.Equal(t, w, tlog.entries[i].level+":"+tlog.entries[i].msg)
	}
}

func TestConfigure(t *testing.T) {
	orig := GetLogger()
	defer SetLogger(orig)

	assert.NoError(t, Configure("dev", "debug"))
	assert.NoError(t, Configure("prod", "info"))
	assert.Error(t, Configure("dev", "notalevel"))
}

func TestWith_MergesFields(t *testing.T) {
	tlog := &testLogger{}
	l := With(tlog, map[string]any{"component": "driver", "server": "192.0.2.1:53"})
	l = With(l, map[string]any{"transport": "udp", "server": "192.0.2.2:53"})

	l.Info(map[string]any{"id": 7}, "sent")

	require.Len(t, tlog.entries, 1)
	got := tlog.entries[0].fields
	assert.Equal(t, "driver", got["component"])
	assert.Equal(t, "udp", got["transport"])
	assert.Equal(t, "192.0.2.2:53", got["server"], "inner With wins")
	assert.Equal(t, 7, got["id"])
}

func TestWith_CallSiteWins(t *testing.T) {
	tlog := &testLogger{}
	l := With(tlog, map[string]any{"component": "driver"})
	l.Warn(map[string]any{"component": "override"}, "x")
	assert.Equal(t, "override", tlog.entries[0].fields["component"])
}

func TestWith_EmptyReturnsSame(t *testing.T) {
	tlog := &testLogger{}
	assert.Same(t, Logger(tlog), With(tlog, nil))
}

func TestOrNoop(t *testing.T) {
	assert.NotNil(t, OrNoop(nil))
	tlog := &testLogger{}
	assert.Same(t, Logger(tlog), OrNoop(tlog))
}

func TestNoopLogger_AllLevels(t *testing.T) {
	orig := GetLogger()
	defer SetLogger(orig)
	SetLogger(NewNoopLogger())

	Debug(nil, "debug message")
	Info(nil, "info message")
	Warn(nil, "warn message")
	Error(nil, "error message")
	Panic(nil, "panic message")
	Fatal(nil, "fatal message")
}
