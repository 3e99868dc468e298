package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/healthverse/care-relay/internal/domain"
	"github.com/healthverse/care-relay/pkg/log"
)

// GormRecordRepository implements RecordRepository using GORM.
type GormRecordRepository struct {
	db *gorm.DB
}

// NewGormRecordRepository creates a new GORM-based record repository.
func NewGormRecordRepository(db *gorm.DB) *GormRecordRepository {
	return &GormRecordRepository{db: db}
}

// Models lists the tables this repository needs migrated.
func Models() []interface{} {
	return []interface{}{&domain.RecordModel{}, &domain.DoctorNoteModel{}}
}

// Create creates a new record. An empty ID is generated.
func (r *GormRecordRepository) Create(ctx context.Context, record *domain.Record) error {
	l := log.Ctx(ctx)

	if record.ID == "" {
		record.ID = uuid.New().String()
	}

	model := domain.RecordToModel(record)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		l.Error().Err(err).Msg("failed to create record in db")
		return err
	}

	record.CreatedAt = model.CreatedAt
	record.UpdatedAt = model.UpdatedAt
	l.Debug().Str(log.FieldRecordID, record.ID).Msg("record created in db")
	return nil
}

// GetByID retrieves a record and its notes, oldest note first.
func (r *GormRecordRepository) GetByID(ctx context.Context, id string) (*domain.Record, error) {
	l := log.Ctx(ctx)

	var model domain.RecordModel
	result := r.db.WithContext(ctx).
		Preload("DoctorNotes", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		First(&model, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		l.Error().Err(result.Error).Str(log.FieldRecordID, id).Msg("failed to get record by id")
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

// AppendNote checks the record exists and inserts the note in one
// transaction.
func (r *GormRecordRepository) AppendNote(ctx context.Context, recordID, doctorID, content string) (*domain.NoteRecord, error) {
	l := log.Ctx(ctx)

	note := &domain.DoctorNoteModel{
		ID:       uuid.New().String(),
		RecordID: recordID,
		DoctorID: doctorID,
		Note:     content,
		Status:   string(domain.NoteStatusActive),
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var record domain.RecordModel
		if err := tx.Select("id").First(&record, "id = ?", recordID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRecordNotFound
			}
			return err
		}
		if err := tx.Create(note).Error; err != nil {
			return err
		}
		// Bump the parent so updatedAt reflects the new note
		return tx.Model(&record).Update("updated_at", note.CreatedAt).Error
	})
	if err != nil {
		if !errors.Is(err, ErrRecordNotFound) {
			l.Error().Err(err).Str(log.FieldRecordID, recordID).Msg("failed to append note")
		}
		return nil, err
	}

	l.Debug().Str(log.FieldRecordID, recordID).Str("note_id", note.ID).Msg("note appended")
	return note.ToDomain(), nil
}

// ListNotes returns the notes of a record, oldest first.
func (r *GormRecordRepository) ListNotes(ctx context.Context, recordID string) ([]domain.NoteRecord, error) {
	record, err := r.GetByID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	return record.DoctorNotes, nil
}
