package domain

import "time"

// NoteStatus is the lifecycle state of a doctor note.
type NoteStatus string

const NoteStatusActive NoteStatus = "active"

// NoteRecord is a doctor note as stored and as broadcast to clients.
type NoteRecord struct {
	ID        string     `json:"_id"`
	DoctorID  string     `json:"doctorId"`
	Note      string     `json:"note"`
	Status    NoteStatus `json:"status"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// Record is the health record a note is appended to.
type Record struct {
	ID          string       `json:"id"`
	PatientID   string       `json:"userId"`
	FileName    string       `json:"filename"`
	FileType    string       `json:"fileType"`
	Text        string       `json:"text"`
	FilePath    string       `json:"filePath"`
	DoctorNotes []NoteRecord `json:"doctorNotes"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}
