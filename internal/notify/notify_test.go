package notify

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/clanboard/internal/rpc"
)

type fakeCanceller struct {
	cancelled []string
	err       error
}

func (f *fakeCanceller) Cancel(_ context.Context, taskID string) error {
	f.cancelled = append(f.cancelled, taskID)
	return f.err
}

func TestCallLifecycle(t *testing.T) {
	tests := []struct {
		name      string
		cancelled bool
		err       error
		wantLevel Level
		wantTitle string
		wantBody  string
	}{
		{name: "success"},
		{
			name:      "api error",
			err:       &rpc.APIError{Op: rpc.OpSetMachine, Details: []rpc.ErrorDetail{{Message: "locked", Description: "try later"}}},
			wantLevel: LevelError,
			wantTitle: "set_machine: locked",
			wantBody:  "try later",
		},
		{
			name:      "transport error",
			err:       errors.New("connection reset"),
			wantLevel: LevelError,
			wantTitle: "set_machine failed",
			wantBody:  "connection reset",
		},
		{name: "context cancelled", err: context.Canceled},
		{name: "unknown operation", err: fmt.Errorf("%w: nope", rpc.ErrUnknownOperation)},
		{
			name:      "cancelled by user",
			cancelled: true,
			err:       errors.New("aborted"),
			wantLevel: LevelInfo,
			wantTitle: "Cancelled set_machine",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(nil, 0, nil)
			info := rpc.CallInfo{TaskID: "t1", Op: rpc.OpSetMachine}

			c.CallStarted(info)
			running := c.List()
			require.Len(t, running, 1)
			assert.Equal(t, "Executing set_machine", running[0].Title)
			assert.True(t, running[0].Running())

			info.Cancelled = tt.cancelled
			c.CallFinished(info, tt.err)
			left := c.List()
			if tt.wantTitle == "" {
				assert.Empty(t, left)
				return
			}
			require.Len(t, left, 1)
			assert.Equal(t, tt.wantLevel, left[0].Level)
			assert.Equal(t, tt.wantTitle, left[0].Title)
			assert.Equal(t, tt.wantBody, left[0].Body)
			assert.False(t, left[0].Running())
		})
	}
}

func TestTaskCallsAreQuiet(t *testing.T) {
	c := New(nil, 0, nil)
	c.CallStarted(rpc.CallInfo{TaskID: "x", Op: rpc.OpDeleteTask})
	c.CallStarted(rpc.CallInfo{TaskID: "y", Op: rpc.OpCancelTask})
	assert.Empty(t, c.List())
}

func TestCancel(t *testing.T) {
	fc := &fakeCanceller{}
	c := New(fc, 0, nil)
	c.CallStarted(rpc.CallInfo{TaskID: "task-9", Op: rpc.OpRunMachineInstall})
	id := c.List()[0].ID

	require.NoError(t, c.Cancel(context.Background(), id))
	assert.Equal(t, []string{"task-9"}, fc.cancelled)

	info := c.Info("hello", "")
	require.ErrorIs(t, c.Cancel(context.Background(), info), ErrNoToast, "plain toasts have no cancel action")
	require.ErrorIs(t, c.Cancel(context.Background(), 999), ErrNoToast)

	fc.err = errors.New("host gone")
	require.Error(t, c.Cancel(context.Background(), id))
}

func TestDismissAndExpire(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := New(nil, 5*time.Second, nil)
	c.now = func() time.Time { return now }

	old := c.Error("old", "")
	c.CallStarted(rpc.CallInfo{TaskID: "t", Op: rpc.OpListMachines})
	now = now.Add(10 * time.Second)
	fresh := c.Info("fresh", "")

	c.Expire()
	var ids []int
	for _, toast := range c.List() {
		ids = append(ids, toast.ID)
	}
	assert.NotContains(t, ids, old)
	assert.Contains(t, ids, fresh)
	assert.Len(t, ids, 2, "running toasts never expire")

	require.NoError(t, c.Dismiss(fresh))
	require.ErrorIs(t, c.Dismiss(fresh), ErrNoToast)
}

func TestChanged_Coalesces(t *testing.T) {
	c := New(nil, 0, nil)
	c.Info("a", "")
	c.Info("b", "")

	select {
	case <-c.Changed():
	default:
		t.Fatal("expected a change notification")
	}
	select {
	case <-c.Changed():
		t.Fatal("notifications should coalesce")
	default:
	}
}
