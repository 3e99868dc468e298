package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/healthverse/care-relay/internal/config"
	"github.com/healthverse/care-relay/internal/domain"
	"github.com/healthverse/care-relay/internal/hub"
	"github.com/healthverse/care-relay/internal/metrics"
	"github.com/healthverse/care-relay/internal/repository"
	"github.com/healthverse/care-relay/pkg/pubsub"
)

func startHub(t *testing.T, pool string, maxMembers int, m *metrics.Metrics) *hub.Hub {
	t.Helper()
	h := hub.NewHub(pool, config.WebSocketConfig{SendBuffer: 16}, maxMembers, m)
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		_ = h.Run(ctx)
		close(stopped)
	}()
	t.Cleanup(func() {
		cancel()
		<-stopped
	})
	return h
}

func connect(t *testing.T, h *hub.Hub, id string) *hub.Client {
	t.Helper()
	c := hub.NewClient(id, h, nil, domain.NewSession(id, h.Pool(), "127.0.0.1"))
	require.NoError(t, h.Register(c))
	return c
}

func recvJSON(t *testing.T, c *hub.Client) map[string]interface{} {
	t.Helper()
	select {
	case raw, ok := <-c.Send:
		require.True(t, ok, "send channel closed for %s", c.ID)
		var msg map[string]interface{}
		require.NoError(t, json.Unmarshal(raw, &msg))
		return msg
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for message on %s", c.ID)
		return nil
	}
}

func expectSilence(t *testing.T, c *hub.Client, wait time.Duration) {
	t.Helper()
	select {
	case raw, ok := <-c.Send:
		if ok {
			t.Fatalf("unexpected message for %s: %s", c.ID, raw)
		}
	case <-time.After(wait):
	}
}

type fakeRepo struct {
	mu      sync.Mutex
	records map[string][]domain.NoteRecord
	err     error
	gate    chan struct{}
	calls   int
}

func newFakeRepo(recordIDs ...string) *fakeRepo {
	r := &fakeRepo{records: make(map[string][]domain.NoteRecord)}
	for _, id := range recordIDs {
		r.records[id] = nil
	}
	return r
}

func (r *fakeRepo) Create(ctx context.Context, record *domain.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[record.ID] = nil
	return nil
}

func (r *fakeRepo) GetByID(ctx context.Context, id string) (*domain.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	notes, ok := r.records[id]
	if !ok {
		return nil, repository.ErrRecordNotFound
	}
	return &domain.Record{ID: id, DoctorNotes: notes}, nil
}

func (r *fakeRepo) AppendNote(ctx context.Context, recordID, doctorID, content string) (*domain.NoteRecord, error) {
	if r.gate != nil {
		select {
		case <-r.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	if _, ok := r.records[recordID]; !ok {
		return nil, repository.ErrRecordNotFound
	}
	now := time.Now()
	note := domain.NoteRecord{
		ID:        "note-" + recordID,
		DoctorID:  doctorID,
		Note:      content,
		Status:    domain.NoteStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.records[recordID] = append(r.records[recordID], note)
	return &note, nil
}

func (r *fakeRepo) ListNotes(ctx context.Context, recordID string) ([]domain.NoteRecord, error) {
	rec, err := r.GetByID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	return rec.DoctorNotes, nil
}

type published struct {
	channel string
	event   *pubsub.Event
}

type fakePublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *fakePublisher) Publish(ctx context.Context, channel string, event *pubsub.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{channel: channel, event: event})
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func (p *fakePublisher) snapshot() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.events...)
}

type fakeProducer struct {
	mu     sync.Mutex
	events []string
}

func (p *fakeProducer) record(ev string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *fakeProducer) ProduceCallInvited(ctx context.Context, callerID, calleeID string) error {
	return p.record("call_invited:" + callerID + "->" + calleeID)
}

func (p *fakeProducer) ProduceCallAccepted(ctx context.Context, callerID, calleeID string) error {
	return p.record("call_accepted:" + callerID + "->" + calleeID)
}

func (p *fakeProducer) ProduceCallTimeout(ctx context.Context, callerID, calleeID, stage string) error {
	return p.record("call_timeout:" + callerID + "->" + calleeID + ":" + stage)
}

func (p *fakeProducer) Close() error { return nil }

func (p *fakeProducer) snapshot() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}
