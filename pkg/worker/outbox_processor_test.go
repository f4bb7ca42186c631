package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/messaging"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

type statusUpdate struct {
	id     string
	status model.OutboxStatus
	errMsg *string
}

type fakeOutbox struct {
	mu      sync.Mutex
	pending []*model.OutboxEvent
	updates []statusUpdate
}

func (f *fakeOutbox) Create(context.Context, *model.OutboxEvent) error { return nil }

func (f *fakeOutbox) GetPendingEventsWithLock(_ context.Context, limit int, _ time.Duration) ([]*model.OutboxEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if limit > len(f.pending) {
		limit = len(f.pending)
	}
	batch := f.pending[:limit]
	f.pending = f.pending[limit:]
	return batch, nil
}

func (f *fakeOutbox) UpdateStatus(ctx context.Context, id string, status model.OutboxStatus, errMsg *string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, statusUpdate{id, status, errMsg})
	return nil
}

type fakeBroker struct {
	failures  int
	published []*messaging.Message
	channels  []string
	onPublish func()
}

func (b *fakeBroker) Publish(_ context.Context, channel string, message interface{}) error {
	if b.onPublish != nil {
		b.onPublish()
	}
	if b.failures > 0 {
		b.failures--
		return errors.New("broker unavailable")
	}
	b.published = append(b.published, message.(*messaging.Message))
	b.channels = append(b.channels, channel)
	return nil
}

func (b *fakeBroker) Subscribe(context.Context, string) (<-chan []byte, error) { return nil, nil }
func (b *fakeBroker) Close() error                                             { return nil }

func newProcessor(t *testing.T, repo *fakeOutbox, broker *fakeBroker, attempts int) (*OutboxProcessor, *metrics.Metrics) {
	t.Helper()
	m := metrics.New("test", prometheus.NewRegistry())
	p, err := NewOutboxProcessor(repo, broker, OutboxProcessorConfig{
		BatchSize:     10,
		PollInterval:  10 * time.Millisecond,
		RetryAttempts: attempts,
		RetryDelay:    time.Millisecond,
		Channel:       "clinic.events",
		MaxRetries:    2,
		ClaimTimeout:  time.Minute,
	}, logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard}), m)
	require.NoError(t, err)
	return p, m
}

func pendingEvent(id, typ string) *model.OutboxEvent {
	return &model.OutboxEvent{ID: id, EventType: typ, Payload: json.RawMessage(`{"id":"` + id + `"}`), Status: "processing"}
}

func TestProcessBatchDelivers(t *testing.T) {
	repo := &fakeOutbox{pending: []*model.OutboxEvent{
		pendingEvent("e1", model.EventPatientCreate),
		pendingEvent("e2", model.EventPaymentDelete),
	}}
	broker := &fakeBroker{}
	p, m := newProcessor(t, repo, broker, 3)

	n, err := p.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.Len(t, broker.published, 2)
	assert.Equal(t, "e1", broker.published[0].ID)
	assert.Equal(t, model.EventPatientCreate, broker.published[0].Type)
	assert.Equal(t, []string{"clinic.events", "clinic.events"}, broker.channels)

	require.Len(t, repo.updates, 2)
	assert.Equal(t, model.OutboxStatusProcessed, repo.updates[0].status)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.OutboxEventsProcessed))
}

func TestProcessBatchRetriesThenSucceeds(t *testing.T) {
	repo := &fakeOutbox{pending: []*model.OutboxEvent{pendingEvent("e1", model.EventPatientUpdate)}}
	broker := &fakeBroker{failures: 2}
	p, m := newProcessor(t, repo, broker, 3)

	n, err := p.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.OutboxRetries.WithLabelValues(model.EventPatientUpdate)))
}

func TestProcessBatchRequeuesFailedEvent(t *testing.T) {
	repo := &fakeOutbox{pending: []*model.OutboxEvent{pendingEvent("e1", model.EventPatientDelete)}}
	broker := &fakeBroker{failures: 5}
	p, _ := newProcessor(t, repo, broker, 2)

	n, err := p.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.Len(t, repo.updates, 1)
	assert.Equal(t, model.OutboxStatusPending, repo.updates[0].status)
	require.NotNil(t, repo.updates[0].errMsg)
}

func TestProcessBatchMarksFailed(t *testing.T) {
	evt := pendingEvent("e1", model.EventPatientDelete)
	evt.RetryCount = 1
	repo := &fakeOutbox{pending: []*model.OutboxEvent{evt}}
	broker := &fakeBroker{failures: 5}
	p, m := newProcessor(t, repo, broker, 2)

	n, err := p.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.Len(t, repo.updates, 1)
	assert.Equal(t, model.OutboxStatusFailed, repo.updates[0].status)
	require.NotNil(t, repo.updates[0].errMsg)
	assert.Contains(t, *repo.updates[0].errMsg, "broker unavailable")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OutboxEventsFailed))
}

func TestProcessBatchRecordsStatusAfterCancel(t *testing.T) {
	repo := &fakeOutbox{pending: []*model.OutboxEvent{pendingEvent("e1", model.EventPaymentUpdate)}}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	broker := &fakeBroker{failures: 5, onPublish: cancel}
	p, _ := newProcessor(t, repo, broker, 3)

	n, err := p.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.Len(t, repo.updates, 1, "claimed event must leave processing")
	assert.Equal(t, "e1", repo.updates[0].id)
	assert.Equal(t, model.OutboxStatusPending, repo.updates[0].status)
}

func TestStartStopsOnCancel(t *testing.T) {
	repo := &fakeOutbox{pending: []*model.OutboxEvent{pendingEvent("e1", model.EventPaymentCreate)}}
	broker := &fakeBroker{}
	p, m := newProcessor(t, repo, broker, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return testutil.ToFloat64(m.OutboxEventsProcessed) == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("processor did not stop")
	}
}

func TestConfigValidation(t *testing.T) {
	_, err := NewOutboxProcessor(&fakeOutbox{}, &fakeBroker{}, OutboxProcessorConfig{}, nil, nil)
	assert.Error(t, err)

	_, err = NewOutboxProcessor(&fakeOutbox{}, &fakeBroker{}, OutboxProcessorConfig{
		BatchSize:     1,
		PollInterval:  time.Second,
		RetryAttempts: 1,
		Channel:       "c",
		MaxRetries:    1,
	}, nil, nil)
	assert.EqualError(t, err, "ClaimTimeout must be greater than 0")
}
