package incident

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogReporter(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	r := NewLogReporter(zap.New(core))

	r.Capture(context.Background(), Event{
		Component:     "transport",
		Operation:     "stream",
		CorrelationID: "abc",
		Err:           errors.New("boom"),
		Extra:         map[string]any{"query": "foo"},
	})
	r.Breadcrumb(context.Background(), Breadcrumb{Category: "retry", Message: "retrying", CorrelationID: "abc"})

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	assert.Equal(t, "abc", fields["correlationId"])
	assert.Equal(t, "stream", fields["operation"])
	assert.Equal(t, "transport", fields["source"])
	assert.Equal(t, "boom", fields["error"])
	assert.Equal(t, "retrying", entries[1].Message)
}

func TestMulti(t *testing.T) {
	a, b := &Recorder{}, &Recorder{}
	r := Multi(a, nil, b)

	r.Capture(context.Background(), Event{Operation: "x"})
	r.Breadcrumb(context.Background(), Breadcrumb{Message: "y"})

	assert.Len(t, a.Events(), 1)
	assert.Len(t, b.Events(), 1)
	assert.Len(t, a.Breadcrumbs(), 1)
	assert.Len(t, b.Breadcrumbs(), 1)
}
