package consumer_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"eventcache/internal/cache"
	"eventcache/internal/consumer"
	domainEvent "eventcache/internal/domain/event"
	"eventcache/internal/domain/record"
	"eventcache/internal/store"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu        sync.Mutex
	records   map[string]*record.HandlingRecord
	insertErr error
	failures  int // fail this many inserts before succeeding
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]*record.HandlingRecord)}
}

func (s *memStore) Insert(_ context.Context, rec *record.HandlingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failures > 0 {
		s.failures--
		return errors.New("connection refused")
	}
	if s.insertErr != nil {
		return s.insertErr
	}
	if _, ok := s.records[rec.ID]; ok {
		return store.ErrDuplicateKey
	}
	s.records[rec.ID] = rec
	return nil
}

func (s *memStore) DeleteByID(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.records, id)
	return nil
}

// fakeSource replays a fixed set of messages, then cancels the loop.
type fakeSource struct {
	msgs      []kafkago.Message
	next      int
	committed []kafkago.Message
	cancel    context.CancelFunc
}

func (f *fakeSource) FetchMessage(ctx context.Context) (kafkago.Message, error) {
	if f.next >= len(f.msgs) {
		f.cancel()
		return kafkago.Message{}, context.Canceled
	}
	msg := f.msgs[f.next]
	f.next++
	return msg, nil
}

func (f *fakeSource) CommitMessages(_ context.Context, msgs ...kafkago.Message) error {
	f.committed = append(f.committed, msgs...)
	return nil
}

func envelope(t *testing.T, id, eventType string) kafkago.Message {
	t.Helper()
	value, err := json.Marshal(domainEvent.Message{
		ID:         id,
		Type:       eventType,
		Producer:   "test",
		OccurredAt: time.Now().UTC(),
		Payload:    json.RawMessage(`{}`),
	})
	require.NoError(t, err)
	return kafkago.Message{Key: []byte(id), Value: value}
}

func newGate(st store.RecordStore) *cache.Cache {
	return cache.New(cache.Options{Enabled: true, EntryTimeout: time.Minute}, st)
}

func TestProcessMessageHandlesFirstSeen(t *testing.T) {
	var handled []string
	loop := consumer.NewLoop(nil, newGate(newMemStore()), func(_ context.Context, ev domainEvent.Message) error {
		handled = append(handled, ev.ID)
		return nil
	}, false)

	err := loop.ProcessMessage(context.Background(), envelope(t, "e1", "OrderCreated"))

	require.NoError(t, err)
	assert.Equal(t, []string{"e1"}, handled)
}

func TestProcessMessageSkipsDuplicate(t *testing.T) {
	var handled int
	loop := consumer.NewLoop(nil, newGate(newMemStore()), func(context.Context, domainEvent.Message) error {
		handled++
		return nil
	}, false)

	msg := envelope(t, "e1", "OrderCreated")
	require.NoError(t, loop.ProcessMessage(context.Background(), msg))
	// Duplicate delivery: commit without handling.
	require.NoError(t, loop.ProcessMessage(context.Background(), msg))

	assert.Equal(t, 1, handled)
}

func TestProcessMessageCommitsCorruptEnvelope(t *testing.T) {
	var handled int
	loop := consumer.NewLoop(nil, newGate(newMemStore()), func(context.Context, domainEvent.Message) error {
		handled++
		return nil
	}, false)

	err := loop.ProcessMessage(context.Background(), kafkago.Message{Value: []byte("not json")})

	require.NoError(t, err)
	assert.Equal(t, 0, handled)
}

func TestProcessMessageFailClosed(t *testing.T) {
	st := newMemStore()
	st.insertErr = errors.New("connection refused")

	var handled int
	loop := consumer.NewLoop(nil, newGate(st), func(context.Context, domainEvent.Message) error {
		handled++
		return nil
	}, false)

	err := loop.ProcessMessage(context.Background(), envelope(t, "e1", "OrderCreated"))

	// Fail-closed: error propagates so the transport redelivers.
	assert.Error(t, err)
	assert.Equal(t, 0, handled)
}

func TestProcessMessageFailOpen(t *testing.T) {
	st := newMemStore()
	st.insertErr = errors.New("connection refused")

	var handled int
	loop := consumer.NewLoop(nil, newGate(st), func(context.Context, domainEvent.Message) error {
		handled++
		return nil
	}, true)

	err := loop.ProcessMessage(context.Background(), envelope(t, "e1", "OrderCreated"))

	require.NoError(t, err)
	assert.Equal(t, 1, handled)
}

func TestProcessMessageHandlerError(t *testing.T) {
	loop := consumer.NewLoop(nil, newGate(newMemStore()), func(context.Context, domainEvent.Message) error {
		return errors.New("downstream unavailable")
	}, false)

	err := loop.ProcessMessage(context.Background(), envelope(t, "e1", "OrderCreated"))
	assert.Error(t, err)
}

func TestRunCommitsProcessedAndDuplicates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dup := envelope(t, "e1", "OrderCreated")
	src := &fakeSource{
		msgs:   []kafkago.Message{dup, dup, envelope(t, "e2", "OrderCreated")},
		cancel: cancel,
	}

	var handled []string
	loop := consumer.NewLoop(src, newGate(newMemStore()), func(_ context.Context, ev domainEvent.Message) error {
		handled = append(handled, ev.ID)
		return nil
	}, false)

	require.NoError(t, loop.Run(ctx))

	// Both deliveries of e1 commit, only one is handled.
	assert.Equal(t, []string{"e1", "e2"}, handled)
	assert.Len(t, src.committed, 3)
}

func TestRunRetriesGateFailureBeforeNextMessage(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st := newMemStore()
	st.failures = 2 // gate recovers on the third attempt

	src := &fakeSource{
		msgs:   []kafkago.Message{envelope(t, "e1", "OrderCreated"), envelope(t, "e2", "OrderCreated")},
		cancel: cancel,
	}

	var handled []string
	loop := consumer.NewLoop(src, newGate(st), func(_ context.Context, ev domainEvent.Message) error {
		handled = append(handled, ev.ID)
		return nil
	}, false, consumer.WithRetryBackoff(time.Millisecond))

	require.NoError(t, loop.Run(ctx))

	// e1 is retried in place and resolved before the loop fetches e2; a
	// later commit must never mark a failed earlier offset consumed.
	assert.Equal(t, []string{"e1", "e2"}, handled)
	require.Len(t, src.committed, 2)
	assert.Equal(t, []byte("e1"), src.committed[0].Key)
	assert.Equal(t, []byte("e2"), src.committed[1].Key)
}

func TestRunDropsMessageAfterRetriesExhausted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st := newMemStore()
	st.insertErr = errors.New("connection refused") // never recovers

	src := &fakeSource{
		msgs:   []kafkago.Message{envelope(t, "e1", "OrderCreated")},
		cancel: cancel,
	}

	var handled int
	loop := consumer.NewLoop(src, newGate(st), func(context.Context, domainEvent.Message) error {
		handled++
		return nil
	}, false, consumer.WithRetryBackoff(time.Millisecond))

	require.NoError(t, loop.Run(ctx))

	// Fail-closed with a dead store: nothing is handled, and the offset is
	// committed only after the retries are exhausted.
	assert.Equal(t, 0, handled)
	require.Len(t, src.committed, 1)
	assert.Equal(t, []byte("e1"), src.committed[0].Key)
}
