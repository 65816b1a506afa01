package main

import (
	"context"
	"errors"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/orderledger/pkg/config"
	"github.com/angelmondragon/orderledger/pkg/db"
	"github.com/angelmondragon/orderledger/pkg/db/dbtest"
	"github.com/angelmondragon/orderledger/pkg/db/models"
	"github.com/angelmondragon/orderledger/pkg/enums"
	"github.com/angelmondragon/orderledger/pkg/logger"
	"github.com/angelmondragon/orderledger/pkg/metrics"
	"github.com/angelmondragon/orderledger/pkg/outbox"
	"github.com/angelmondragon/orderledger/pkg/outbox/payloads"
)

type fakePublishResult struct {
	err error
}

func (r fakePublishResult) Get(context.Context) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	return "server-id", nil
}

type fakePublisher struct {
	errs     []error
	messages []*gcppubsub.Message
	stopped  bool
}

func (p *fakePublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	p.messages = append(p.messages, msg)
	var err error
	if len(p.errs) > 0 {
		err, p.errs = p.errs[0], p.errs[1:]
	}
	return fakePublishResult{err: err}
}

func (p *fakePublisher) Stop() { p.stopped = true }

type fixture struct {
	client *db.Client
	repo   *outbox.Repository
	pub    *fakePublisher
	svc    *Service
}

func newFixture(t *testing.T, maxAttempts int, errs ...error) *fixture {
	t.Helper()
	client := dbtest.OpenClient(t)
	repo := outbox.NewRepository(client.DB())
	pub := &fakePublisher{errs: errs}
	cfg := &config.Config{
		PubSub: config.PubSubConfig{CascadeTopic: "cascade"},
		Outbox: config.OutboxConfig{BatchSize: 10, PollIntervalMS: 1, MaxAttempts: maxAttempts},
	}
	svc, err := NewService(ServiceParams{
		Config:     cfg,
		Logger:     logger.Nop(),
		DB:         client,
		Publisher:  pub,
		Repository: repo,
		Decoder:    outbox.NewCascadeRegistry(),
		Metrics:    metrics.NewOutboxMetrics(prometheus.NewRegistry()),
	})
	require.NoError(t, err)
	return &fixture{client: client, repo: repo, pub: pub, svc: svc}
}

func (f *fixture) emit(t *testing.T, at time.Time) uuid.UUID {
	t.Helper()
	orderID := uuid.New()
	require.NoError(t, outbox.NewService(f.repo, nil).Emit(context.Background(), f.client.DB(), outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		OccurredAt:    at,
		Data:          payloads.OrderCreatedEvent{OrderID: orderID, CustomerID: uuid.New()},
	}))
	return orderID
}

func (f *fixture) rows(t *testing.T) []models.OutboxEvent {
	t.Helper()
	var rows []models.OutboxEvent
	require.NoError(t, f.client.DB().Order("created_at ASC").Find(&rows).Error)
	return rows
}

func TestProcessBatchPublishesAndRetries(t *testing.T) {
	f := newFixture(t, 3, errors.New("transient"))
	base := time.Now().UTC().Add(-time.Minute)
	first := f.emit(t, base)
	second := f.emit(t, base.Add(time.Second))

	processed, err := f.svc.processBatch(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)
	require.Len(t, f.pub.messages, 2)

	msg := f.pub.messages[1]
	assert.Equal(t, second.String(), msg.Attributes["aggregate_id"])
	assert.Equal(t, "order_created", msg.Attributes["event_type"])
	assert.Equal(t, "1", msg.Attributes["event_version"])

	rows := f.rows(t)
	require.Len(t, rows, 2)
	assert.Equal(t, first, rows[0].AggregateID)
	assert.Nil(t, rows[0].PublishedAt, "failed publish must stay pending")
	assert.Equal(t, 1, rows[0].AttemptCount)
	require.NotNil(t, rows[0].LastError)
	assert.Equal(t, "transient", *rows[0].LastError)
	assert.NotNil(t, rows[1].PublishedAt)
	assert.Equal(t, rows[1].ID.String(), msg.Attributes["event_id"])

	processed, err = f.svc.processBatch(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)
	assert.NotNil(t, f.rows(t)[0].PublishedAt, "retry should deliver the pending event")

	processed, err = f.svc.processBatch(context.Background())
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestProcessBatchParksExhaustedEvents(t *testing.T) {
	f := newFixture(t, 2, errors.New("down"), errors.New("still down"))
	f.emit(t, time.Now().UTC())

	for i := 0; i < 2; i++ {
		_, err := f.svc.processBatch(context.Background())
		require.NoError(t, err)
	}

	rows := f.rows(t)
	require.Len(t, rows, 1)
	assert.Nil(t, rows[0].PublishedAt)
	assert.Equal(t, 2, rows[0].AttemptCount)
	assert.Contains(t, *rows[0].LastError, "max publish attempts reached")

	terminal, err := f.repo.ListTerminal(context.Background(), 2, 10)
	require.NoError(t, err)
	assert.Len(t, terminal, 1)

	processed, err := f.svc.processBatch(context.Background())
	require.NoError(t, err)
	assert.False(t, processed, "exhausted events must not be fetched again")
}

func TestProcessBatchParksUndecodableEvents(t *testing.T) {
	f := newFixture(t, 5)
	row := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOrderShipped,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       "not json",
		CreatedAt:     time.Now().UTC(),
	}
	require.NoError(t, f.repo.Insert(f.client.DB(), row))

	_, err := f.svc.processBatch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, f.pub.messages, "undecodable events are never published")

	rows := f.rows(t)
	assert.Equal(t, 5, rows[0].AttemptCount)
	assert.Contains(t, *rows[0].LastError, "undecodable event")
}

func TestRunStopsOnCancelAndStopsPublisher(t *testing.T) {
	f := newFixture(t, 3)
	f.emit(t, time.Now().UTC())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := f.svc.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, f.pub.stopped)
	assert.NotNil(t, f.rows(t)[0].PublishedAt)
}

func TestRunFailsWhenPubSubUnreachable(t *testing.T) {
	f := newFixture(t, 3)
	f.svc.ping = func(context.Context) error { return errors.New("no topic") }
	assert.Error(t, f.svc.Run(context.Background()))
}

func TestNewServiceValidatesDependencies(t *testing.T) {
	cfg := &config.Config{}
	_, err := NewService(ServiceParams{Config: cfg, Logger: logger.Nop()})
	assert.Error(t, err)

	svc, err := NewService(ServiceParams{
		Config:     cfg,
		Logger:     logger.Nop(),
		DB:         dbtest.OpenClient(t),
		Publisher:  &fakePublisher{},
		Repository: outbox.NewRepository(nil),
		Decoder:    outbox.NewCascadeRegistry(),
	})
	require.NoError(t, err)
	assert.Equal(t, defaultBatchSize, svc.batchSize)
	assert.Equal(t, defaultMaxAttempts, svc.maxAttempts)
	assert.Equal(t, time.Duration(defaultPollMs)*time.Millisecond, svc.pollInterval)
}

func TestBackoffHelpers(t *testing.T) {
	assert.Equal(t, 2*time.Second, nextBackoff(time.Second, time.Second, maxBackoff))
	assert.Equal(t, maxBackoff, nextBackoff(8*time.Second, time.Second, maxBackoff))
	assert.Equal(t, 2*time.Second, nextBackoff(0, time.Second, maxBackoff))
	j := withJitter(time.Second)
	assert.True(t, j >= time.Second && j < time.Second+jitterWindow)
	assert.Zero(t, withJitter(0))
}
