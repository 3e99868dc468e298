package domain

import "encoding/json"

// WebSocket message types from client.
const (
	MsgTypeRoomJoin          = "room:join"
	MsgTypeUserCall          = "user:call"
	MsgTypeCallAccepted      = "call:accepted"
	MsgTypeNegotiationNeeded = "peer:nego:needed"
	MsgTypeNegotiationDone   = "peer:nego:done"
	MsgTypeAddNote           = "addNote"
)

// WebSocket message types to client.
const (
	MsgTypeUserJoined   = "user:joined"
	MsgTypeIncomingCall = "incomming:call" // spelling is part of the deployed client protocol
	MsgTypeCallAnswered = "call:accepted"
	MsgTypeNegotiation  = "peer:nego:needed"
	MsgTypeNegoFinal    = "peer:nego:final"
	MsgTypeNoteAdded    = "noteAdded"
	MsgTypeRoomFull     = "room:full"
	MsgTypeCallTimeout  = "call:timeout"
)

// Server -> Client messages

// UserJoinedMessage is sent to the existing members of a room when a peer joins.
type UserJoinedMessage struct {
	Type  string `json:"type"`
	Email string `json:"email"`
	ID    string `json:"id"`
}

// IncomingCallMessage carries a call invite to its target.
type IncomingCallMessage struct {
	Type  string          `json:"type"`
	From  string          `json:"from"`
	Offer json.RawMessage `json:"offer"`
}

// CallAcceptedMessage carries the callee's answer back to the caller.
type CallAcceptedMessage struct {
	Type string          `json:"type"`
	From string          `json:"from"`
	Ans  json.RawMessage `json:"ans"`
}

// NegotiationNeededMessage carries a renegotiation offer.
type NegotiationNeededMessage struct {
	Type  string          `json:"type"`
	From  string          `json:"from"`
	Offer json.RawMessage `json:"offer"`
}

// NegotiationFinalMessage carries the renegotiation answer.
type NegotiationFinalMessage struct {
	Type string          `json:"type"`
	From string          `json:"from"`
	Ans  json.RawMessage `json:"ans"`
}

// NoteAddedMessage is fanned out to every connection of the notes pool.
type NoteAddedMessage struct {
	Type     string     `json:"type"`
	RecordID string     `json:"recordId"`
	Note     NoteRecord `json:"note"`
}

// RoomFullMessage answers a join that would exceed the room capacity.
type RoomFullMessage struct {
	Type     string `json:"type"`
	Room     string `json:"room"`
	Capacity int    `json:"capacity"`
}

// CallTimeoutMessage tells a peer that a pending negotiation expired.
type CallTimeoutMessage struct {
	Type  string `json:"type"`
	Peer  string `json:"peer"`
	Stage string `json:"stage"`
}

// Negotiation stages reported in CallTimeoutMessage.
const (
	StageInvite        = "invite"
	StageRenegotiation = "renegotiation"
)

// NewUserJoined builds the peer-joined announcement.
func NewUserJoined(email, connID string) *UserJoinedMessage {
	return &UserJoinedMessage{Type: MsgTypeUserJoined, Email: email, ID: connID}
}

// NewNoteAdded builds the note broadcast.
func NewNoteAdded(recordID string, note NoteRecord) *NoteAddedMessage {
	return &NoteAddedMessage{Type: MsgTypeNoteAdded, RecordID: recordID, Note: note}
}

// NewRoomFull builds the capacity rejection.
func NewRoomFull(room string, capacity int) *RoomFullMessage {
	return &RoomFullMessage{Type: MsgTypeRoomFull, Room: room, Capacity: capacity}
}

// NewCallTimeout builds the deadline notification sent to one peer.
func NewCallTimeout(peer, stage string) *CallTimeoutMessage {
	return &CallTimeoutMessage{Type: MsgTypeCallTimeout, Peer: peer, Stage: stage}
}
