package report

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestReporter_LogsAfterClose(t *testing.T) {
	t.Parallel()
	core, logs := observer.New(zapcore.DebugLevel)
	r := New(zap.New(core), 4)

	r.Report(errors.New("push failed"), zap.String("owner", "o1"))
	r.Report(nil)
	r.Close()

	entries := logs.FilterMessage("reported failure").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, "o1", fields["owner"])
	require.Equal(t, "push failed", fields["error"])
	require.Zero(t, r.Dropped())
}

func TestReporter_DropsWhenFull(t *testing.T) {
	t.Parallel()
	// Hold the drain goroutine with a blocking core so the queue fills up.
	gate := make(chan struct{})
	core, logs := observer.New(zapcore.DebugLevel)
	r := New(zap.New(blockingCore{Core: core, gate: gate}), 1)

	for i := 0; i < 10; i++ {
		r.Report(errors.New("x"))
	}
	require.Positive(t, r.Dropped())
	close(gate)
	r.Close()

	require.Equal(t, int64(10), int64(logs.FilterMessage("reported failure").Len())+r.Dropped())
	require.Equal(t, 1, logs.FilterMessage("reports dropped").Len())
}

func TestReporter_ReportAfterCloseIsDropped(t *testing.T) {
	t.Parallel()
	r := New(nil, 0)
	r.Close()
	r.Close()

	require.NotPanics(t, func() { r.Report(errors.New("late")) })
	require.Equal(t, int64(1), r.Dropped())
}

type blockingCore struct {
	zapcore.Core
	gate chan struct{}
}

func (c blockingCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(e.Level) {
		return ce.AddCore(e, c)
	}
	return ce
}

func (c blockingCore) Write(e zapcore.Entry, f []zapcore.Field) error {
	if e.Message == "reported failure" {
		<-c.gate
	}
	return c.Core.Write(e, f)
}

func (c blockingCore) With(f []zapcore.Field) zapcore.Core {
	return blockingCore{Core: c.Core.With(f), gate: c.gate}
}
