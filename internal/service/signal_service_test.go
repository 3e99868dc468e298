package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthverse/care-relay/internal/domain"
	"github.com/healthverse/care-relay/internal/hub"
	"github.com/healthverse/care-relay/internal/metrics"
)

func TestJoinAndOfferAnswerExchange(t *testing.T) {
	h := startHub(t, "video", 2, nil)
	svc := NewSignalService(h, nil, nil, 0)
	ctx := context.Background()

	a := connect(t, h, "a")
	b := connect(t, h, "b")

	require.NoError(t, svc.HandleJoinRoom(ctx, a, domain.JoinRoom{Room: "consult-1", Email: "patient@test"}))
	require.NoError(t, svc.HandleJoinRoom(ctx, b, domain.JoinRoom{Room: "consult-1", Email: "dr@test"}))

	joined := recvJSON(t, a)
	assert.Equal(t, "user:joined", joined["type"])
	assert.Equal(t, "dr@test", joined["email"])
	assert.Equal(t, "b", joined["id"])
	assert.Equal(t, "dr@test", b.Session.GetEmail())

	offer := json.RawMessage(`{"sdp":"v=0","type":"offer"}`)
	require.NoError(t, svc.HandleSignal(ctx, a, domain.CallUser{To: "b", Offer: offer}))

	incoming := recvJSON(t, b)
	assert.Equal(t, "incomming:call", incoming["type"])
	assert.Equal(t, "a", incoming["from"])
	assert.Equal(t, map[string]interface{}{"sdp": "v=0", "type": "offer"}, incoming["offer"])

	require.NoError(t, svc.HandleSignal(ctx, b, domain.AcceptCall{To: "a", Ans: json.RawMessage(`"answer"`)}))
	accepted := recvJSON(t, a)
	assert.Equal(t, "call:accepted", accepted["type"])
	assert.Equal(t, "b", accepted["from"])
	assert.Equal(t, "answer", accepted["ans"])

	require.NoError(t, svc.HandleSignal(ctx, a, domain.NegotiationNeeded{To: "b", Offer: json.RawMessage(`"o2"`)}))
	nego := recvJSON(t, b)
	assert.Equal(t, "peer:nego:needed", nego["type"])
	assert.Equal(t, "o2", nego["offer"])

	require.NoError(t, svc.HandleSignal(ctx, b, domain.NegotiationDone{To: "a", Ans: json.RawMessage(`"a2"`)}))
	final := recvJSON(t, a)
	assert.Equal(t, "peer:nego:final", final["type"])
	assert.Equal(t, "a2", final["ans"])
}

func TestRejoinSameRoomIsSilent(t *testing.T) {
	h := startHub(t, "video", 2, nil)
	svc := NewSignalService(h, nil, nil, 0)
	ctx := context.Background()

	a := connect(t, h, "a")
	b := connect(t, h, "b")

	require.NoError(t, svc.HandleJoinRoom(ctx, a, domain.JoinRoom{Room: "r1"}))
	require.NoError(t, svc.HandleJoinRoom(ctx, b, domain.JoinRoom{Room: "r1"}))
	_ = recvJSON(t, a)

	require.NoError(t, svc.HandleJoinRoom(ctx, b, domain.JoinRoom{Room: "r1"}))
	expectSilence(t, a, 50*time.Millisecond)
}

func TestJoinFullRoom(t *testing.T) {
	h := startHub(t, "video", 2, nil)
	svc := NewSignalService(h, nil, nil, 0)
	ctx := context.Background()

	a := connect(t, h, "a")
	b := connect(t, h, "b")
	c := connect(t, h, "c")

	require.NoError(t, svc.HandleJoinRoom(ctx, a, domain.JoinRoom{Room: "r1"}))
	require.NoError(t, svc.HandleJoinRoom(ctx, b, domain.JoinRoom{Room: "r1"}))
	_ = recvJSON(t, a)

	require.NoError(t, svc.HandleJoinRoom(ctx, c, domain.JoinRoom{Room: "r1", Email: "third@test"}))

	full := recvJSON(t, c)
	assert.Equal(t, "room:full", full["type"])
	assert.Equal(t, "r1", full["room"])
	assert.Equal(t, float64(2), full["capacity"])

	expectSilence(t, a, 20*time.Millisecond)
	expectSilence(t, b, 20*time.Millisecond)
	assert.Equal(t, []string{"a", "b"}, h.RoomMembers("r1"))
}

func TestJoinUnregisteredClient(t *testing.T) {
	h := startHub(t, "video", 2, nil)
	svc := NewSignalService(h, nil, nil, 0)
	a := connect(t, h, "a")
	h.Unregister(a)

	err := svc.HandleJoinRoom(context.Background(), a, domain.JoinRoom{Room: "r1"})
	assert.Error(t, err)
}

func TestSignalToDeadTargetIsDropped(t *testing.T) {
	h := startHub(t, "video", 2, nil)
	svc := NewSignalService(h, nil, nil, 0)
	a := connect(t, h, "a")

	err := svc.HandleSignal(context.Background(), a, domain.CallUser{To: "ghost", Offer: json.RawMessage(`{}`)})
	require.NoError(t, err)
	expectSilence(t, a, 20*time.Millisecond)
	assert.True(t, h.IsLive("a"))
}

func TestInviteTimeoutNotifiesBothPeers(t *testing.T) {
	m := metrics.New()
	h := startHub(t, "video", 2, m)
	producer := &fakeProducer{}
	svc := NewSignalService(h, producer, m, 50*time.Millisecond)
	t.Cleanup(func() { _ = svc.Stop() })

	a := connect(t, h, "a")
	b := connect(t, h, "b")

	require.NoError(t, svc.HandleSignal(context.Background(), a, domain.CallUser{To: "b"}))
	_ = recvJSON(t, b) // incomming:call

	toCaller := recvJSON(t, a)
	assert.Equal(t, "call:timeout", toCaller["type"])
	assert.Equal(t, "b", toCaller["peer"])
	assert.Equal(t, "invite", toCaller["stage"])

	toCallee := recvJSON(t, b)
	assert.Equal(t, "call:timeout", toCallee["type"])
	assert.Equal(t, "a", toCallee["peer"])

	assert.Eventually(t, func() bool {
		return len(producer.snapshot()) == 2
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"call_invited:a->b", "call_timeout:a->b:invite"}, producer.snapshot())
}

func TestSignalToDeadTargetArmsNoDeadline(t *testing.T) {
	m := metrics.New()
	h := startHub(t, "video", 2, m)
	producer := &fakeProducer{}
	svc := NewSignalService(h, producer, m, 30*time.Millisecond)
	t.Cleanup(func() { _ = svc.Stop() })
	ctx := context.Background()

	a := connect(t, h, "a")
	require.NoError(t, svc.HandleSignal(ctx, a, domain.CallUser{To: "ghost"}))
	require.NoError(t, svc.HandleSignal(ctx, a, domain.NegotiationNeeded{To: "ghost"}))

	expectSilence(t, a, 120*time.Millisecond)
	assert.Empty(t, producer.snapshot())
	timeouts, err := testutil.GatherAndCount(m.Registry(), "relay_call_timeouts_total")
	require.NoError(t, err)
	assert.Zero(t, timeouts)
}

func TestAnswerRacingInviteSettlesDeadline(t *testing.T) {
	h := startHub(t, "video", 0, nil)
	svc := NewSignalService(h, nil, nil, 60*time.Millisecond)
	t.Cleanup(func() { _ = svc.Stop() })
	ctx := context.Background()

	const calls = 50
	callers := make([]*hub.Client, calls)
	callees := make([]*hub.Client, calls)
	var wg sync.WaitGroup
	for i := 0; i < calls; i++ {
		callers[i] = connect(t, h, fmt.Sprintf("caller-%d", i))
		callees[i] = connect(t, h, fmt.Sprintf("callee-%d", i))

		// Callee answers from its own goroutine as soon as the invite lands
		wg.Add(1)
		go func(caller, callee *hub.Client) {
			defer wg.Done()
			<-callee.Send
			_ = svc.HandleSignal(ctx, callee, domain.AcceptCall{To: caller.ID})
		}(callers[i], callees[i])
	}

	for i := 0; i < calls; i++ {
		require.NoError(t, svc.HandleSignal(ctx, callers[i], domain.CallUser{To: callees[i].ID}))
	}
	wg.Wait()

	for i := 0; i < calls; i++ {
		assert.Equal(t, "call:accepted", recvJSON(t, callers[i])["type"])
	}
	time.Sleep(150 * time.Millisecond)
	for i := 0; i < calls; i++ {
		expectSilence(t, callers[i], time.Millisecond)
		expectSilence(t, callees[i], time.Millisecond)
	}
}

func TestCallToDepartedPeerIsNotRearmed(t *testing.T) {
	h := startHub(t, "video", 2, nil)
	svc := NewSignalService(h, nil, nil, 40*time.Millisecond)
	t.Cleanup(func() { _ = svc.Stop() })
	ctx := context.Background()

	a := connect(t, h, "a")
	b := connect(t, h, "b")

	require.NoError(t, svc.HandleSignal(ctx, a, domain.CallUser{To: "b"}))
	_ = recvJSON(t, b)

	// b's connection ends: the hub forgets it, then its state is released
	h.Unregister(b)
	require.NoError(t, svc.HandleSignal(ctx, a, domain.CallUser{To: "b"}))
	require.NoError(t, svc.HandleDisconnect(ctx, b))

	expectSilence(t, a, 120*time.Millisecond)
}

func TestAcceptCancelsDeadline(t *testing.T) {
	h := startHub(t, "video", 2, nil)
	producer := &fakeProducer{}
	svc := NewSignalService(h, producer, nil, 50*time.Millisecond)
	t.Cleanup(func() { _ = svc.Stop() })
	ctx := context.Background()

	a := connect(t, h, "a")
	b := connect(t, h, "b")

	require.NoError(t, svc.HandleSignal(ctx, a, domain.CallUser{To: "b"}))
	_ = recvJSON(t, b)
	require.NoError(t, svc.HandleSignal(ctx, b, domain.AcceptCall{To: "a"}))
	_ = recvJSON(t, a)

	expectSilence(t, a, 120*time.Millisecond)
	expectSilence(t, b, 10*time.Millisecond)
	assert.Equal(t, []string{"call_invited:a->b", "call_accepted:a->b"}, producer.snapshot())
}

func TestRenegotiationTimeout(t *testing.T) {
	m := metrics.New()
	h := startHub(t, "video", 2, m)
	svc := NewSignalService(h, nil, m, 40*time.Millisecond)
	t.Cleanup(func() { _ = svc.Stop() })
	ctx := context.Background()

	a := connect(t, h, "a")
	b := connect(t, h, "b")

	require.NoError(t, svc.HandleSignal(ctx, a, domain.NegotiationNeeded{To: "b"}))
	_ = recvJSON(t, b)

	// An answer for the wrong stage leaves the deadline running
	require.NoError(t, svc.HandleSignal(ctx, b, domain.AcceptCall{To: "a"}))
	_ = recvJSON(t, a)

	msg := recvJSON(t, a)
	assert.Equal(t, "call:timeout", msg["type"])
	assert.Equal(t, "renegotiation", msg["stage"])
}

func TestDisconnectReleasesNegotiation(t *testing.T) {
	h := startHub(t, "video", 2, nil)
	svc := NewSignalService(h, nil, nil, 40*time.Millisecond)
	t.Cleanup(func() { _ = svc.Stop() })
	ctx := context.Background()

	a := connect(t, h, "a")
	b := connect(t, h, "b")

	require.NoError(t, svc.HandleSignal(ctx, a, domain.CallUser{To: "b"}))
	_ = recvJSON(t, b)

	h.Unregister(b)
	require.NoError(t, svc.HandleDisconnect(ctx, b))

	expectSilence(t, a, 100*time.Millisecond)
}
