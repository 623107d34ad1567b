package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeSender struct {
	name string
	err  error
	sent []string
}

func (s *fakeSender) Send(ctx context.Context, title, message string) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, title)
	return nil
}

func (s *fakeSender) Name() string { return s.name }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotify_EventFilter(t *testing.T) {
	s := &fakeSender{name: "fake"}
	n := NewNotifier([]Sender{s}, []string{EventTradeExecuted}, testLogger())

	assert.NoError(t, n.Notify(context.Background(), EventMarketResolved, "ignored", ""))
	assert.Empty(t, s.sent)

	assert.NoError(t, n.Notify(context.Background(), EventTradeExecuted, "delivered", ""))
	assert.Equal(t, []string{"delivered"}, s.sent)
}

func TestNotify_ApprovalBypassesFilter(t *testing.T) {
	s := &fakeSender{name: "fake"}
	n := NewNotifier([]Sender{s}, []string{EventTradeExecuted}, testLogger())

	assert.NoError(t, n.Notify(context.Background(), EventApprovalRequired, "approve", ""))
	assert.Equal(t, []string{"approve"}, s.sent)
}

func TestNotify_EmptyFilterAllowsAll(t *testing.T) {
	s := &fakeSender{name: "fake"}
	n := NewNotifier([]Sender{s}, nil, testLogger())

	assert.NoError(t, n.Notify(context.Background(), EventDayStopped, "stop", ""))
	assert.Len(t, s.sent, 1)
}

func TestDispatch_PartialFailureStillDelivers(t *testing.T) {
	bad := &fakeSender{name: "bad", err: errors.New("boom")}
	good := &fakeSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, testLogger())

	err := n.NotifyAll(context.Background(), "t", "m")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "bad")
	assert.Len(t, good.sent, 1, "remaining senders still receive the message")
}
