package framework

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoopIterationMessages(t *testing.T) {
	var seen [][]Message
	l := NewLoop()
	l.AddController(ControlFunc(func(cc ControlContext) error {
		seen = append(seen, cc.Messages())
		return nil
	}))
	l.PostMessage(1)
	l.PostMessage("two")
	l.RunIteration(context.TODO())
	l.RunIteration(context.TODO())
	require.Equal(t, [][]Message{{1, "two"}, nil}, seen)
}

func TestLoopTriggeredByRunnable(t *testing.T) {
	l := NewLoop()
	l.Interval = time.Hour
	gotCh := make(chan Message, 1)
	l.AddController(ControlFunc(func(cc ControlContext) error {
		for _, msg := range cc.Messages() {
			gotCh <- msg
		}
		return nil
	}))
	l.AddRunnable(RunFunc(func(ctx context.Context) error {
		ctl := LoopCtlFrom(ctx)
		require.NotNil(t, ctl)
		ctl.PostMessage("hello")
		ctl.TriggerNext()
		<-ctx.Done()
		return ctx.Err()
	}))

	ctx, cancel := context.WithCancel(context.TODO())
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()
	select {
	case msg := <-gotCh:
		require.Equal(t, "hello", msg)
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}
	cancel()
	require.ErrorIs(t, <-errCh, context.Canceled)
}

func TestLoopCtlFromPlainContext(t *testing.T) {
	require.Nil(t, LoopCtlFrom(context.TODO()))
}

func TestRunnerWaitAggregates(t *testing.T) {
	boom := errors.New("boom")
	r := NewRunner()
	r.Go(
		NamedRun("fails", RunFunc(func(ctx context.Context) error { return boom })),
		RunFunc(func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}),
	)
	err := r.Wait()
	require.Error(t, err)
	require.Equal(t, "boom", err.Error())
}

func TestRunnerStop(t *testing.T) {
	r := NewRunner()
	r.Go(RunFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))
	r.Stop()
	require.NoError(t, r.Wait())
}

func TestAggregatedError(t *testing.T) {
	var errs AggregatedError
	require.NoError(t, errs.Add(nil, nil).Aggregate())
	errs.Add(errors.New("a"), errors.New("b"))
	require.Equal(t, "multiple errors:\na\nb", errs.Aggregate().Error())

	sentinel := errors.New("sentinel")
	errs.Add(fmt.Errorf("wrapped: %w", sentinel))
	require.ErrorIs(t, errs.Aggregate(), sentinel)
	require.False(t, errors.Is(errs.Aggregate(), context.Canceled))
}
