package service

import (
	"context"

	"github.com/healthverse/care-relay/internal/domain"
	"github.com/healthverse/care-relay/internal/hub"
)

// SignalService handles the call dialect.
type SignalService interface {
	// HandleJoinRoom places the client in a call room and announces it to
	// the other members.
	HandleJoinRoom(ctx context.Context, client *hub.Client, cmd domain.JoinRoom) error

	// HandleSignal forwards an offer, answer or renegotiation message to its
	// target connection.
	HandleSignal(ctx context.Context, client *hub.Client, sig domain.Signal) error

	// HandleDisconnect releases any negotiation state held for the client.
	HandleDisconnect(ctx context.Context, client *hub.Client) error

	// Stop cancels pending negotiation deadlines.
	Stop() error
}

// NoteService handles the notes dialect.
type NoteService interface {
	// HandleAddNote persists the note and broadcasts it to the pool once
	// stored. Persistence runs in the background.
	HandleAddNote(ctx context.Context, client *hub.Client, cmd domain.AddNote) error

	// ListNotes returns the notes stored on a record.
	ListNotes(ctx context.Context, recordID string) ([]domain.NoteRecord, error)

	// Stop waits for in-flight persistence to finish.
	Stop() error
}
