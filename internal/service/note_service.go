package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/healthverse/care-relay/internal/audit"
	"github.com/healthverse/care-relay/internal/domain"
	"github.com/healthverse/care-relay/internal/hub"
	"github.com/healthverse/care-relay/internal/metrics"
	"github.com/healthverse/care-relay/internal/repository"
	pkglog "github.com/healthverse/care-relay/pkg/log"
	"github.com/healthverse/care-relay/pkg/pubsub"
)

// Persist failure reasons reported on relay_note_persist_failures_total.
const (
	ReasonRecordNotFound = "record_not_found"
	ReasonStoreError     = "store_error"
)

type noteService struct {
	hub          *hub.Hub
	repo         repository.RecordRepository
	publisher    pubsub.Publisher
	metrics      *metrics.Metrics
	storeTimeout time.Duration

	wg sync.WaitGroup
}

// NewNoteService creates a new NoteService instance. publisher and m may
// be nil.
func NewNoteService(
	h *hub.Hub,
	repo repository.RecordRepository,
	publisher pubsub.Publisher,
	m *metrics.Metrics,
	storeTimeout time.Duration,
) NoteService {
	if storeTimeout <= 0 {
		storeTimeout = 10 * time.Second
	}
	return &noteService{
		hub:          h,
		repo:         repo,
		publisher:    publisher,
		metrics:      m,
		storeTimeout: storeTimeout,
	}
}

func (s *noteService) HandleAddNote(ctx context.Context, c *hub.Client, cmd domain.AddNote) error {
	// Keep the request logger but not its cancellation: the write must
	// complete even if the sender disconnects.
	logger := pkglog.Ctx(ctx).With().
		Str(pkglog.FieldRecordID, cmd.RecordID).
		Str(pkglog.FieldUserID, cmd.UserID).
		Logger()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		storeCtx, cancel := context.WithTimeout(context.Background(), s.storeTimeout)
		defer cancel()
		storeCtx = pkglog.WithLogger(storeCtx, logger)

		s.persistAndBroadcast(storeCtx, cmd)
	}()

	return nil
}

func (s *noteService) persistAndBroadcast(ctx context.Context, cmd domain.AddNote) {
	l := pkglog.Ctx(ctx)

	note, err := s.repo.AppendNote(ctx, cmd.RecordID, cmd.UserID, cmd.Content)
	if err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			s.metrics.IncNotePersistFailure(ReasonRecordNotFound)
			l.Warn().Msg("record not found, note dropped")
			return
		}
		s.metrics.IncNotePersistFailure(ReasonStoreError)
		l.Error().Err(err).Msg("failed to persist note")
		return
	}

	audit.LogNote(ctx, cmd.UserID, cmd.RecordID, note.ID)

	data, err := json.Marshal(domain.NewNoteAdded(cmd.RecordID, *note))
	if err != nil {
		l.Error().Err(err).Msg("failed to encode note broadcast")
		return
	}

	delivered := s.hub.Broadcast(data)
	s.metrics.IncNoteBroadcast()
	l.Info().Int("recipients", delivered).Str("note_id", note.ID).Msg("note broadcast")

	s.publish(ctx, cmd.RecordID, note)
}

// publish forwards the note to the event bus for out-of-process consumers.
func (s *noteService) publish(ctx context.Context, recordID string, note *domain.NoteRecord) {
	if s.publisher == nil {
		return
	}

	event, err := pubsub.NewEvent(pubsub.EventNoteAdded, recordID, &pubsub.NoteAddedPayload{
		RecordID:  recordID,
		NoteID:    note.ID,
		AuthorID:  note.DoctorID,
		Content:   note.Note,
		CreatedAt: note.CreatedAt.Unix(),
	})
	if err != nil {
		return
	}

	if err := s.publisher.Publish(ctx, pubsub.RecordNotesChannel(recordID), event); err != nil {
		l := pkglog.Ctx(ctx)
		l.Warn().Err(err).Msg("failed to publish note event")
	}
}

func (s *noteService) ListNotes(ctx context.Context, recordID string) ([]domain.NoteRecord, error) {
	return s.repo.ListNotes(ctx, recordID)
}

func (s *noteService) Stop() error {
	s.wg.Wait()
	return nil
}
