package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthverse/care-relay/internal/domain"
	"github.com/healthverse/care-relay/pkg/database"
)

func newTestRepo(t *testing.T) *GormRecordRepository {
	t.Helper()
	db, err := database.New(&database.Config{
		Driver:   "sqlite",
		FilePath: filepath.Join(t.TempDir(), "records.db"),
		LogLevel: "silent",
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db, Models()...))
	t.Cleanup(func() { _ = database.Close(db) })
	return NewGormRecordRepository(db)
}

func seedRecord(t *testing.T, repo *GormRecordRepository) *domain.Record {
	t.Helper()
	rec := &domain.Record{
		PatientID: "patient-1",
		FileName:  "labs.pdf",
		FileType:  "application/pdf",
		Text:      "HbA1c 6.1%",
		FilePath:  "uploads/labs.pdf",
	}
	require.NoError(t, repo.Create(context.Background(), rec))
	require.NotEmpty(t, rec.ID)
	return rec
}

func TestAppendNote(t *testing.T) {
	repo := newTestRepo(t)
	rec := seedRecord(t, repo)
	ctx := context.Background()

	note, err := repo.AppendNote(ctx, rec.ID, "doctor-7", "Repeat labs in 3 months")
	require.NoError(t, err)

	assert.NotEmpty(t, note.ID)
	assert.Equal(t, "doctor-7", note.DoctorID)
	assert.Equal(t, "Repeat labs in 3 months", note.Note)
	assert.Equal(t, domain.NoteStatusActive, note.Status)
	assert.False(t, note.CreatedAt.IsZero())

	got, err := repo.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, got.DoctorNotes, 1)
	assert.Equal(t, note.ID, got.DoctorNotes[0].ID)
	assert.Equal(t, "labs.pdf", got.FileName)
}

func TestAppendNoteUnknownRecord(t *testing.T) {
	repo := newTestRepo(t)

	note, err := repo.AppendNote(context.Background(), "missing", "doctor-7", "text")
	assert.ErrorIs(t, err, ErrRecordNotFound)
	assert.Nil(t, note)
}

func TestListNotes(t *testing.T) {
	repo := newTestRepo(t)
	rec := seedRecord(t, repo)
	ctx := context.Background()

	first, err := repo.AppendNote(ctx, rec.ID, "doctor-1", "first")
	require.NoError(t, err)
	second, err := repo.AppendNote(ctx, rec.ID, "doctor-2", "second")
	require.NoError(t, err)

	notes, err := repo.ListNotes(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, notes, 2)

	ids := []string{notes[0].ID, notes[1].ID}
	assert.ElementsMatch(t, []string{first.ID, second.ID}, ids)

	_, err = repo.ListNotes(ctx, "missing")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestGetByIDNotFound(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.GetByID(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}
