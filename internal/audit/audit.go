package audit

import (
	"context"

	"github.com/healthverse/care-relay/pkg/log"
)

// Audit actions for relay-service.
const (
	ActionAddNote   = "record.note.add"
	ActionCallStart = "call.invite"
)

// Field constants for audit entries.
const (
	FieldAction = "action"
	FieldDetail = "detail"
	FieldNoteID = "note_id"
)

// Log emits a structured audit log entry via the context logger.
func Log(ctx context.Context, action string, userID string, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldUserID, userID).
		Msg(msg)
}

// LogNote emits the audit entry for a persisted doctor note.
func LogNote(ctx context.Context, doctorID, recordID, noteID string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, ActionAddNote).
		Str(log.FieldUserID, doctorID).
		Str(log.FieldRecordID, recordID).
		Str(FieldNoteID, noteID).
		Msg("doctor note added")
}
