package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func TestRunner_RegisterAndRunNow(t *testing.T) {
	r := NewRunner(quietLogger())
	calls := 0
	require.NoError(t, r.Register("b", "0 6 * * *", func(context.Context) error { calls++; return nil }))
	require.NoError(t, r.Register("a", "", func(context.Context) error { return errors.New("boom") }))

	assert.Equal(t, []string{"a", "b"}, r.Names())

	require.NoError(t, r.RunNow(context.Background(), "b"))
	assert.Equal(t, 1, calls)
	assert.EqualError(t, r.RunNow(context.Background(), "a"), "boom")
	assert.ErrorIs(t, r.RunNow(context.Background(), "zzz"), ErrUnknownJob)
}

func TestRunner_RegisterRejects(t *testing.T) {
	r := NewRunner(quietLogger())
	noop := func(context.Context) error { return nil }

	assert.Error(t, r.Register("bad", "every tuesday", noop))
	require.NoError(t, r.Register("ok", "0 9 * * *", noop))
	assert.ErrorContains(t, r.Register("ok", "0 9 * * *", noop), "already registered")
}

func TestRunner_Next(t *testing.T) {
	r := NewRunner(quietLogger())
	noop := func(context.Context) error { return nil }
	require.NoError(t, r.Register("report", "0 10 * * 1", noop))
	require.NoError(t, r.Register("manual", "", noop))

	next := r.Next()
	require.Contains(t, next, "report")
	assert.NotContains(t, next, "manual")
	assert.Equal(t, time.Monday, next["report"].Weekday())
	assert.Equal(t, 10, next["report"].Hour())
	assert.Equal(t, time.UTC, next["report"].Location())
}

func TestRunner_StartStopCancelsContext(t *testing.T) {
	r := NewRunner(quietLogger())
	r.Start(context.Background())
	ctx := r.baseContext()
	r.Stop()
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}
