package domain

import (
	"encoding/json"
	"fmt"
)

// Kind enumerates the inbound commands understood by the relay.
type Kind int

const (
	KindJoinRoom Kind = iota + 1
	KindCallUser
	KindAcceptCall
	KindNegotiationNeeded
	KindNegotiationDone
	KindAddNote
)

var kindByTag = map[string]Kind{
	MsgTypeRoomJoin:          KindJoinRoom,
	MsgTypeUserCall:          KindCallUser,
	MsgTypeCallAccepted:      KindAcceptCall,
	MsgTypeNegotiationNeeded: KindNegotiationNeeded,
	MsgTypeNegotiationDone:   KindNegotiationDone,
	MsgTypeAddNote:           KindAddNote,
}

// String returns the wire tag of the kind.
func (k Kind) String() string {
	switch k {
	case KindJoinRoom:
		return MsgTypeRoomJoin
	case KindCallUser:
		return MsgTypeUserCall
	case KindAcceptCall:
		return MsgTypeCallAccepted
	case KindNegotiationNeeded:
		return MsgTypeNegotiationNeeded
	case KindNegotiationDone:
		return MsgTypeNegotiationDone
	case KindAddNote:
		return MsgTypeAddNote
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Command is a decoded and validated inbound message. The concrete types
// are JoinRoom, CallUser, AcceptCall, NegotiationNeeded, NegotiationDone
// and AddNote.
type Command interface {
	Kind() Kind
}

// Signal is a command forwarded verbatim to exactly one target connection.
type Signal interface {
	Command
	Target() string
	// Outbound builds the message delivered to the target on behalf of from.
	Outbound(from string) interface{}
}

// JoinRoom asks to enter a call room. Email is a display label passed
// through untouched to the other members.
type JoinRoom struct {
	Room  string
	Email string
}

func (JoinRoom) Kind() Kind { return KindJoinRoom }

// CallUser invites To into a call.
type CallUser struct {
	To    string
	Offer json.RawMessage
}

func (CallUser) Kind() Kind       { return KindCallUser }
func (c CallUser) Target() string { return c.To }
func (c CallUser) Outbound(from string) interface{} {
	return &IncomingCallMessage{Type: MsgTypeIncomingCall, From: from, Offer: c.Offer}
}

// AcceptCall answers an invite from To.
type AcceptCall struct {
	To  string
	Ans json.RawMessage
}

func (AcceptCall) Kind() Kind       { return KindAcceptCall }
func (c AcceptCall) Target() string { return c.To }
func (c AcceptCall) Outbound(from string) interface{} {
	return &CallAcceptedMessage{Type: MsgTypeCallAnswered, From: from, Ans: c.Ans}
}

// NegotiationNeeded carries a renegotiation offer to To.
type NegotiationNeeded struct {
	To    string
	Offer json.RawMessage
}

func (NegotiationNeeded) Kind() Kind       { return KindNegotiationNeeded }
func (c NegotiationNeeded) Target() string { return c.To }
func (c NegotiationNeeded) Outbound(from string) interface{} {
	return &NegotiationNeededMessage{Type: MsgTypeNegotiation, From: from, Offer: c.Offer}
}

// NegotiationDone carries the renegotiation answer to To.
type NegotiationDone struct {
	To  string
	Ans json.RawMessage
}

func (NegotiationDone) Kind() Kind       { return KindNegotiationDone }
func (c NegotiationDone) Target() string { return c.To }
func (c NegotiationDone) Outbound(from string) interface{} {
	return &NegotiationFinalMessage{Type: MsgTypeNegoFinal, From: from, Ans: c.Ans}
}

// AddNote appends a doctor note to a record and broadcasts it.
type AddNote struct {
	RecordID string
	UserID   string
	Content  string
}

func (AddNote) Kind() Kind { return KindAddNote }

// DecodeErrorCode classifies why an inbound message was rejected.
type DecodeErrorCode string

const (
	ErrCodeMalformed    DecodeErrorCode = "MALFORMED"
	ErrCodeUnknownType  DecodeErrorCode = "UNKNOWN_TYPE"
	ErrCodeMissingField DecodeErrorCode = "MISSING_FIELD"
	ErrCodeWrongDialect DecodeErrorCode = "WRONG_DIALECT"
)

// DecodeError is returned for every inbound message that does not produce a
// Command.
type DecodeError struct {
	Code  DecodeErrorCode
	Type  string
	Field string
	Err   error
}

func (e *DecodeError) Error() string {
	switch e.Code {
	case ErrCodeMalformed:
		return fmt.Sprintf("malformed message: %v", e.Err)
	case ErrCodeMissingField:
		return fmt.Sprintf("%s: missing field %q", e.Type, e.Field)
	case ErrCodeWrongDialect:
		return fmt.Sprintf("%s: not accepted on this endpoint", e.Type)
	default:
		return fmt.Sprintf("unknown message type %q", e.Type)
	}
}

func (e *DecodeError) Unwrap() error { return e.Err }

// envelope is the union of every inbound field.
type envelope struct {
	Action   string          `json:"action"`
	Type     string          `json:"type"`
	Email    string          `json:"email"`
	Room     string          `json:"room"`
	To       string          `json:"to"`
	Offer    json.RawMessage `json:"offer"`
	Ans      json.RawMessage `json:"ans"`
	RecordID string          `json:"recordId"`
	UserID   string          `json:"userId"`
	Content  string          `json:"content"`
}

// DecodeCommand parses one inbound frame. The discriminator is "action",
// falling back to "type". Any failure is a *DecodeError.
func DecodeCommand(data []byte) (Command, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &DecodeError{Code: ErrCodeMalformed, Err: err}
	}

	tag := env.Action
	if tag == "" {
		tag = env.Type
	}

	kind, ok := kindByTag[tag]
	if !ok {
		return nil, &DecodeError{Code: ErrCodeUnknownType, Type: tag}
	}

	missing := func(field string) error {
		return &DecodeError{Code: ErrCodeMissingField, Type: tag, Field: field}
	}

	switch kind {
	case KindJoinRoom:
		if env.Room == "" {
			return nil, missing("room")
		}
		return JoinRoom{Room: env.Room, Email: env.Email}, nil
	case KindCallUser:
		if env.To == "" {
			return nil, missing("to")
		}
		return CallUser{To: env.To, Offer: env.Offer}, nil
	case KindAcceptCall:
		if env.To == "" {
			return nil, missing("to")
		}
		return AcceptCall{To: env.To, Ans: env.Ans}, nil
	case KindNegotiationNeeded:
		if env.To == "" {
			return nil, missing("to")
		}
		return NegotiationNeeded{To: env.To, Offer: env.Offer}, nil
	case KindNegotiationDone:
		if env.To == "" {
			return nil, missing("to")
		}
		return NegotiationDone{To: env.To, Ans: env.Ans}, nil
	default:
		switch {
		case env.RecordID == "":
			return nil, missing("recordId")
		case env.UserID == "":
			return nil, missing("userId")
		case env.Content == "":
			return nil, missing("content")
		}
		return AddNote{RecordID: env.RecordID, UserID: env.UserID, Content: env.Content}, nil
	}
}
