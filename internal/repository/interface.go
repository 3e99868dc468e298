package repository

import (
	"context"
	"errors"

	"github.com/healthverse/care-relay/internal/domain"
)

var (
	ErrRecordNotFound = errors.New("record not found")
)

// RecordRepository defines the interface for record persistence.
type RecordRepository interface {
	Create(ctx context.Context, record *domain.Record) error
	GetByID(ctx context.Context, id string) (*domain.Record, error)
	// AppendNote adds an active doctor note to the record and returns it.
	AppendNote(ctx context.Context, recordID, doctorID, content string) (*domain.NoteRecord, error)
	ListNotes(ctx context.Context, recordID string) ([]domain.NoteRecord, error)
}
