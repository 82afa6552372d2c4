package cron

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunNow(t *testing.T) {
	s := New(nil)
	s.Register(Job{Name: "ok", Interval: time.Hour, Fn: func(context.Context) error { return nil }})
	s.Register(Job{Name: "bad", Interval: time.Hour, Fn: func(context.Context) error { return errors.New("boom") }})

	snap, err := s.RunNow(context.Background(), "ok")
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, snap.Status)
	assert.NotNil(t, snap.LastRunAt)

	snap, err = s.RunNow(context.Background(), "bad")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, snap.Status)
	assert.Equal(t, "boom", snap.Message)

	_, err = s.RunNow(context.Background(), "missing")
	assert.Error(t, err)

	list := s.List()
	require.Len(t, list, 2)
	assert.Equal(t, "bad", list[0].Name)
	assert.Equal(t, "ok", list[1].Name)
}

func TestStart(t *testing.T) {
	var runs atomic.Int32
	s := New(nil)
	s.Register(Job{Name: "tick", Interval: 10 * time.Millisecond, Fn: func(context.Context) error {
		runs.Add(1)
		return nil
	}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	require.Eventually(t, func() bool { return runs.Load() >= 2 }, time.Second, 5*time.Millisecond)
}

func TestTrigger(t *testing.T) {
	done := make(chan struct{})
	s := New(nil)
	s.Register(Job{Name: "once", Interval: time.Hour, Fn: func(context.Context) error {
		close(done)
		return nil
	}})
	require.NoError(t, s.Trigger(context.Background(), "once"))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("job did not run")
	}
	assert.Error(t, s.Trigger(context.Background(), "nope"))
}
