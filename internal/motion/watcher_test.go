package motion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mjarco/homemon/pkg/mprofi"
)

// fakePin goes high on the given read, zero-based. Negative means never.
type fakePin struct {
	highOn int
	reads  int
	err    error
}

func (p *fakePin) Read() (bool, error) {
	defer func() { p.reads++ }()
	if p.err != nil {
		return false, p.err
	}
	return p.highOn >= 0 && p.reads == p.highOn, nil
}

type fakeNotifier struct {
	fields []string
	values []string
	err    error
}

func (n *fakeNotifier) Notify(ctx context.Context, field, value string) error {
	n.fields = append(n.fields, field)
	n.values = append(n.values, value)
	return n.err
}

type fakeAsker struct {
	payload string
	err     error
	topics  []string
}

func (a *fakeAsker) Await(ctx context.Context, topic string) (string, error) {
	a.topics = append(a.topics, topic)
	return a.payload, a.err
}

type fakeSender struct {
	added      []mprofi.Message
	references []string
	err        error
}

func (s *fakeSender) Add(recipient, message string) error {
	s.added = append(s.added, mprofi.Message{Recipient: recipient, Message: message})
	return nil
}

func (s *fakeSender) Send(ctx context.Context, reference string) ([]mprofi.SentMessage, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.references = append(s.references, reference)
	return []mprofi.SentMessage{{ID: 1}}, nil
}

func testConfig() Config {
	return Config{
		Attempts:     5,
		PollInterval: time.Millisecond,
		Field:        "field6",
		Topic:        "/motion/alert",
		Recipient:    "111222333",
		Message:      "Motion detected at home",
		Reference:    "motion",
		Policy:       DefaultPolicy,
	}
}

func newTestWatcher(t *testing.T, pin *fakePin, notifier *fakeNotifier, asker *fakeAsker, sender *fakeSender) *Watcher {
	t.Helper()
	w, err := New(testConfig(), pin, notifier, asker, sender)
	require.NoError(t, err)
	w.wait = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return w
}

func TestWatch(t *testing.T) {
	t.Run("detection notifies and alerts", func(t *testing.T) {
		pin := &fakePin{highOn: 2}
		notifier := &fakeNotifier{}
		asker := &fakeAsker{payload: "1"}
		sender := &fakeSender{}
		w := newTestWatcher(t, pin, notifier, asker, sender)
		detected, err := w.Watch(context.Background())
		require.NoError(t, err)
		assert.True(t, detected)
		assert.Equal(t, []string{"field6"}, notifier.fields)
		assert.Equal(t, []string{"1"}, notifier.values)
		assert.Equal(t, []string{"/motion/alert"}, asker.topics)
		require.Len(t, sender.added, 1)
		assert.Equal(t, "111222333", sender.added[0].Recipient)
		assert.Equal(t, []string{"motion"}, sender.references)
	})
	t.Run("no motion within window", func(t *testing.T) {
		pin := &fakePin{highOn: -1}
		notifier := &fakeNotifier{}
		w := newTestWatcher(t, pin, notifier, &fakeAsker{}, &fakeSender{})
		detected, err := w.Watch(context.Background())
		require.NoError(t, err)
		assert.False(t, detected)
		assert.Equal(t, 5, pin.reads)
		assert.Empty(t, notifier.fields)
	})
	t.Run("policy suppresses SMS", func(t *testing.T) {
		pin := &fakePin{highOn: 0}
		notifier := &fakeNotifier{}
		asker := &fakeAsker{payload: "3"}
		sender := &fakeSender{}
		w := newTestWatcher(t, pin, notifier, asker, sender)
		detected, err := w.Watch(context.Background())
		require.NoError(t, err)
		assert.True(t, detected)
		assert.Len(t, notifier.fields, 1)
		assert.Empty(t, sender.added)
	})
	t.Run("notification failure is not fatal", func(t *testing.T) {
		pin := &fakePin{highOn: 0}
		notifier := &fakeNotifier{err: errors.New("connection refused")}
		asker := &fakeAsker{payload: "1"}
		sender := &fakeSender{}
		w := newTestWatcher(t, pin, notifier, asker, sender)
		detected, err := w.Watch(context.Background())
		require.NoError(t, err)
		assert.True(t, detected)
		// the SMS path still runs
		assert.Len(t, sender.added, 1)
	})
	t.Run("broker failure skips SMS", func(t *testing.T) {
		pin := &fakePin{highOn: 0}
		asker := &fakeAsker{err: errors.New("broker gone")}
		sender := &fakeSender{}
		w := newTestWatcher(t, pin, &fakeNotifier{}, asker, sender)
		detected, err := w.Watch(context.Background())
		require.NoError(t, err)
		assert.True(t, detected)
		assert.Empty(t, sender.added)
	})
	t.Run("persistent pin failure", func(t *testing.T) {
		pin := &fakePin{err: errors.New("gpio not mapped")}
		w := newTestWatcher(t, pin, &fakeNotifier{}, &fakeAsker{}, &fakeSender{})
		detected, err := w.Watch(context.Background())
		assert.False(t, detected)
		assert.Error(t, err)
	})
	t.Run("context cancellation stops polling", func(t *testing.T) {
		pin := &fakePin{highOn: -1}
		w := newTestWatcher(t, pin, &fakeNotifier{}, &fakeAsker{}, &fakeSender{})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := w.Watch(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
