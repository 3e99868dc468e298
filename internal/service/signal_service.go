package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/healthverse/care-relay/internal/audit"
	"github.com/healthverse/care-relay/internal/domain"
	"github.com/healthverse/care-relay/internal/hub"
	"github.com/healthverse/care-relay/internal/kafka"
	"github.com/healthverse/care-relay/internal/metrics"
	pkglog "github.com/healthverse/care-relay/pkg/log"
)

// negotiation is an offer waiting for its answer between two peers.
type negotiation struct {
	key    string
	caller string
	callee string
	stage  string
	timer  *time.Timer
}

type signalService struct {
	hub           *hub.Hub
	kafkaProducer kafka.CallEventProducer
	metrics       *metrics.Metrics
	timeout       time.Duration

	// Pending negotiations keyed by kafka.PairKey
	pending map[string]*negotiation
	mu      sync.Mutex
}

// NewSignalService creates a new SignalService instance. kafkaProducer and
// m may be nil. timeout <= 0 disables negotiation deadlines.
func NewSignalService(
	h *hub.Hub,
	kafkaProducer kafka.CallEventProducer,
	m *metrics.Metrics,
	timeout time.Duration,
) SignalService {
	return &signalService{
		hub:           h,
		kafkaProducer: kafkaProducer,
		metrics:       m,
		timeout:       timeout,
		pending:       make(map[string]*negotiation),
	}
}

func (s *signalService) HandleJoinRoom(ctx context.Context, c *hub.Client, cmd domain.JoinRoom) error {
	l := pkglog.Ctx(ctx)

	announce, err := json.Marshal(domain.NewUserJoined(cmd.Email, c.ID))
	if err != nil {
		return fmt.Errorf("encode user joined: %w", err)
	}

	if c.Session != nil {
		c.Session.SetEmail(cmd.Email)
	}

	switch result := s.hub.JoinRoom(c, cmd.Room, announce); result {
	case hub.Joined, hub.AlreadyMember:
		l.Debug().
			Str(pkglog.FieldRoomID, cmd.Room).
			Str(pkglog.FieldEmail, cmd.Email).
			Str("result", result.String()).
			Msg("room join handled")
		return nil
	case hub.RoomFull:
		l.Warn().
			Str(pkglog.FieldRoomID, cmd.Room).
			Int("capacity", s.hub.MaxMembers()).
			Msg("room full, join rejected")
		data, err := json.Marshal(domain.NewRoomFull(cmd.Room, s.hub.MaxMembers()))
		if err != nil {
			return fmt.Errorf("encode room full: %w", err)
		}
		s.hub.SendTo(c.ID, data)
		return nil
	default:
		return fmt.Errorf("join room %s: connection %s is not registered", cmd.Room, c.ID)
	}
}

func (s *signalService) HandleSignal(ctx context.Context, c *hub.Client, sig domain.Signal) error {
	l := pkglog.Ctx(ctx)
	target := sig.Target()

	data, err := json.Marshal(sig.Outbound(c.ID))
	if err != nil {
		return fmt.Errorf("encode %s: %w", sig.Kind(), err)
	}

	// The deadline is armed before delivery so an answer racing back on the
	// peer's read goroutine always finds it.
	var pending *negotiation
	switch sig.Kind() {
	case domain.KindCallUser:
		pending = s.open(c.ID, target, domain.StageInvite)
	case domain.KindNegotiationNeeded:
		pending = s.open(c.ID, target, domain.StageRenegotiation)
	}

	if !s.hub.SendTo(target, data) {
		s.cancel(pending)
		l.Debug().
			Str(pkglog.FieldTargetID, target).
			Str(pkglog.FieldMsgType, sig.Kind().String()).
			Msg("signal not delivered")
		return nil
	}

	switch sig.Kind() {
	case domain.KindCallUser:
		audit.Log(ctx, audit.ActionCallStart, c.ID, "call invite relayed")
		s.produce(ctx, func(p kafka.CallEventProducer) error {
			return p.ProduceCallInvited(ctx, c.ID, target)
		})
	case domain.KindAcceptCall:
		s.settle(c.ID, target, domain.StageInvite)
		s.produce(ctx, func(p kafka.CallEventProducer) error {
			return p.ProduceCallAccepted(ctx, target, c.ID)
		})
	case domain.KindNegotiationDone:
		s.settle(c.ID, target, domain.StageRenegotiation)
	}

	return nil
}

func (s *signalService) HandleDisconnect(ctx context.Context, c *hub.Client) error {
	l := pkglog.Ctx(ctx)

	s.mu.Lock()
	released := 0
	for key, n := range s.pending {
		if n.caller == c.ID || n.callee == c.ID {
			n.timer.Stop()
			delete(s.pending, key)
			released++
		}
	}
	s.mu.Unlock()

	if released > 0 {
		l.Debug().Int("negotiations", released).Msg("released pending negotiations")
	}
	return nil
}

func (s *signalService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, n := range s.pending {
		n.timer.Stop()
		delete(s.pending, key)
	}
	return nil
}

// open starts (or restarts) the deadline for the pair. It returns nil when
// deadlines are disabled.
func (s *signalService) open(caller, callee, stage string) *negotiation {
	if s.timeout <= 0 || caller == callee {
		return nil
	}

	key := kafka.PairKey(caller, callee)
	n := &negotiation{key: key, caller: caller, callee: callee, stage: stage}

	s.mu.Lock()
	if prev, ok := s.pending[key]; ok {
		prev.timer.Stop()
	}
	n.timer = time.AfterFunc(s.timeout, func() { s.expire(key, n) })
	s.pending[key] = n
	s.mu.Unlock()
	return n
}

// cancel drops n if it is still the pair's current deadline.
func (s *signalService) cancel(n *negotiation) {
	if n == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending[n.key] == n {
		n.timer.Stop()
		delete(s.pending, n.key)
	}
}

// settle clears the pair's deadline if it is waiting on stage.
func (s *signalService) settle(a, b, stage string) {
	key := kafka.PairKey(a, b)

	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.pending[key]; ok && n.stage == stage {
		n.timer.Stop()
		delete(s.pending, key)
	}
}

func (s *signalService) expire(key string, n *negotiation) {
	s.mu.Lock()
	if s.pending[key] != n {
		s.mu.Unlock()
		return
	}
	delete(s.pending, key)
	s.mu.Unlock()

	l := pkglog.L()
	l.Info().
		Str("caller", n.caller).
		Str("callee", n.callee).
		Str("stage", n.stage).
		Str(pkglog.FieldPool, s.hub.Pool()).
		Msg("negotiation timed out")

	s.metrics.IncCallTimeout(n.stage)
	s.notifyTimeout(n.caller, n.callee, n.stage)
	s.notifyTimeout(n.callee, n.caller, n.stage)

	ctx := context.Background()
	s.produce(ctx, func(p kafka.CallEventProducer) error {
		return p.ProduceCallTimeout(ctx, n.caller, n.callee, n.stage)
	})
}

func (s *signalService) notifyTimeout(to, peer, stage string) {
	data, err := json.Marshal(domain.NewCallTimeout(peer, stage))
	if err != nil {
		return
	}
	s.hub.SendTo(to, data)
}

// produce emits a call event. Failures are logged and never affect relay.
func (s *signalService) produce(ctx context.Context, fn func(kafka.CallEventProducer) error) {
	if s.kafkaProducer == nil {
		return
	}
	if err := fn(s.kafkaProducer); err != nil {
		l := pkglog.Ctx(ctx)
		l.Warn().Err(err).Msg("failed to produce call event")
	}
}
