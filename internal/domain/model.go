package domain

import (
	"time"
)

// RecordModel is the GORM model for records table.
type RecordModel struct {
	ID          string            `gorm:"type:varchar(36);primaryKey"`
	PatientID   string            `gorm:"type:varchar(36);index;not null"`
	FileName    string            `gorm:"type:varchar(255)"`
	FileType    string            `gorm:"type:varchar(100)"`
	Text        string            `gorm:"type:text"`
	FilePath    string            `gorm:"type:varchar(500)"`
	DoctorNotes []DoctorNoteModel `gorm:"foreignKey:RecordID"`
	CreatedAt   time.Time         `gorm:"autoCreateTime"`
	UpdatedAt   time.Time         `gorm:"autoUpdateTime"`
}

// TableName specifies the table name for RecordModel.
func (RecordModel) TableName() string {
	return "records"
}

// ToDomain converts RecordModel to domain Record.
func (m *RecordModel) ToDomain() *Record {
	notes := make([]NoteRecord, len(m.DoctorNotes))
	for i := range m.DoctorNotes {
		notes[i] = *m.DoctorNotes[i].ToDomain()
	}
	return &Record{
		ID:          m.ID,
		PatientID:   m.PatientID,
		FileName:    m.FileName,
		FileType:    m.FileType,
		Text:        m.Text,
		FilePath:    m.FilePath,
		DoctorNotes: notes,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

// RecordToModel converts domain Record to RecordModel. Notes are not copied.
func RecordToModel(r *Record) *RecordModel {
	return &RecordModel{
		ID:        r.ID,
		PatientID: r.PatientID,
		FileName:  r.FileName,
		FileType:  r.FileType,
		Text:      r.Text,
		FilePath:  r.FilePath,
		CreatedAt: r.CreatedAt,
	}
}

// DoctorNoteModel is the GORM model for record_doctor_notes table.
type DoctorNoteModel struct {
	ID        string    `gorm:"type:varchar(36);primaryKey"`
	RecordID  string    `gorm:"type:varchar(36);index;not null"`
	DoctorID  string    `gorm:"type:varchar(64);index;not null"`
	Note      string    `gorm:"type:text;not null"`
	Status    string    `gorm:"type:varchar(20);not null;default:'active'"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName specifies the table name for DoctorNoteModel.
func (DoctorNoteModel) TableName() string {
	return "record_doctor_notes"
}

// ToDomain converts DoctorNoteModel to domain NoteRecord.
func (m *DoctorNoteModel) ToDomain() *NoteRecord {
	return &NoteRecord{
		ID:        m.ID,
		DoctorID:  m.DoctorID,
		Note:      m.Note,
		Status:    NoteStatus(m.Status),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
