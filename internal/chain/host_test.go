package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tiqet/internal/domain"
)

var (
	owner    = common.HexToAddress("0x00000000000000000000000000000000000000a0")
	admin    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	holder   = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	bettorA  = common.HexToAddress("0x00000000000000000000000000000000000000b0")
	bettorB  = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	stranger = common.HexToAddress("0x00000000000000000000000000000000000000ff")
)

const genesisUnix = int64(1_700_000_000)

func testGenesis() Genesis {
	return Genesis{
		Owner:        owner,
		Time:         time.Unix(genesisUnix, 0).UTC(),
		ProposalFee:  uint256.NewInt(100),
		ThresholdBps: 500,
		Mints: []GenesisMint{
			{Token: "fees", To: holder, Amount: uint256.NewInt(1_000)},
			{Token: "stake", To: bettorA, Amount: uint256.NewInt(1_000)},
			{Token: "stake", To: bettorB, Amount: uint256.NewInt(1_000)},
		},
		Collections: []GenesisCollection{{Name: "Founders", Holders: []common.Address{holder}}},
	}
}

// stepClock advances one second per reading.
type stepClock struct {
	mu  sync.Mutex
	now int64
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now++
	return time.Unix(c.now, 0).UTC()
}

func newHost(t *testing.T, j domain.Journal) *Host {
	t.Helper()
	st, err := NewState(testGenesis())
	require.NoError(t, err)
	clock := &stepClock{now: genesisUnix}
	return NewHost(st, j, nil, HostConfig{Clock: clock.Now}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

type submitter struct {
	t      *testing.T
	h      *Host
	nonces map[common.Address]uint64
}

func (s *submitter) do(sender common.Address, action string, payload string) (domain.Receipt, error) {
	s.t.Helper()
	if s.nonces == nil {
		s.nonces = make(map[common.Address]uint64)
	}
	s.nonces[sender]++
	return s.h.Submit(context.Background(), domain.Submission{
		Sender:  sender,
		Nonce:   s.nonces[sender],
		Action:  action,
		Payload: json.RawMessage(payload),
	})
}

func (s *submitter) ok(sender common.Address, action string, payload string) domain.Receipt {
	s.t.Helper()
	r, err := s.do(sender, action, payload)
	require.NoError(s.t, err, "%s by %s", action, sender.Hex())
	require.True(s.t, r.Success)
	return r
}

// runScenario drives a full event lifecycle through Submit.
func runScenario(t *testing.T, h *Host) *submitter {
	s := &submitter{t: t, h: h}
	var dep Deployment
	h.View(func(st *State) { dep = st.Deployment })

	s.ok(owner, ActAddAdmin, fmt.Sprintf(`{"account":%q}`, admin.Hex()))
	s.ok(holder, ActApprove, fmt.Sprintf(`{"token":"fees","spender":%q,"amount":"100"}`, dep.Engine.Hex()))
	r := s.ok(holder, ActPropose, `{"metadata":"derby"}`)
	assert.JSONEq(t, `{"event_id":1}`, string(r.Result))

	end := genesisUnix + 3600
	s.ok(admin, ActAccept, fmt.Sprintf(`{"event_id":1,"vig":100,"max_per_bet":"100","liquidity":"500","end_time":%d,"options":2}`, end))
	for _, b := range []common.Address{bettorA, bettorB} {
		s.ok(b, ActApprove, fmt.Sprintf(`{"token":"stake","spender":%q,"amount":"1000"}`, dep.Engine.Hex()))
	}
	s.ok(bettorA, ActPlaceWager, `{"event_id":1,"option":1,"amount":"20"}`)
	s.ok(bettorB, ActPlaceWager, `{"event_id":1,"option":0,"amount":"10"}`)
	s.ok(admin, ActResolve, `{"event_id":1,"winner":1,"note":"photo finish"}`)
	return s
}

func TestSubmitScenario(t *testing.T) {
	j := NewMemoryJournal()
	h := newHost(t, j)
	s := runScenario(t, h)

	r := s.ok(bettorA, ActClaimWager, `{"event_id":1,"option":1}`)
	assert.JSONEq(t, `{"payout":"29"}`, string(r.Result))
	require.Len(t, r.Logs, 1)
	assert.Equal(t, domain.LogWagerClaimed, r.Logs[0].Name)

	last, err := j.LastSeq(context.Background())
	require.NoError(t, err)
	assert.Equal(t, h.Seq(), last)
	got, err := h.Receipt(context.Background(), r.TxID)
	require.NoError(t, err)
	assert.Equal(t, r.Seq, got.Seq)

	h.View(func(st *State) {
		assert.Equal(t, uint64(1_009), st.Stake.BalanceOf(bettorA).Uint64())
		assert.Equal(t, uint64(100), st.Treasury.FeeFund().Uint64())
		assert.Equal(t, uint64(1), st.Treasury.Fund().Uint64())
	})
}

func TestFailedCallIsJournaledWithoutLogs(t *testing.T) {
	h := newHost(t, NewMemoryJournal())
	s := &submitter{t: t, h: h}

	r, err := s.do(stranger, ActAddAdmin, fmt.Sprintf(`{"account":%q}`, stranger.Hex()))
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.False(t, r.Success)
	assert.Equal(t, int64(1), r.Seq)
	assert.Empty(t, r.Logs)
	assert.NotEmpty(t, r.Error)
	h.View(func(st *State) { assert.False(t, st.Access.IsAdmin(stranger)) })
}

func TestNonceReplayRejected(t *testing.T) {
	h := newHost(t, NewMemoryJournal())
	sub := domain.Submission{Sender: owner, Nonce: 5, Action: ActSetThreshold, Payload: json.RawMessage(`{"bps":600}`)}
	_, err := h.Submit(context.Background(), sub)
	require.NoError(t, err)

	_, err = h.Submit(context.Background(), sub)
	assert.ErrorIs(t, err, domain.ErrNonceReused)
	sub.Nonce = 4
	_, err = h.Submit(context.Background(), sub)
	assert.ErrorIs(t, err, domain.ErrNonceReused)
	assert.Equal(t, int64(1), h.Seq())
	assert.Equal(t, uint64(5), h.Nonce(owner))
}

func TestDispatchErrors(t *testing.T) {
	h := newHost(t, NewMemoryJournal())
	s := &submitter{t: t, h: h}

	_, err := s.do(owner, "market.explode", `{}`)
	assert.ErrorIs(t, err, domain.ErrUnknownAction)
	_, err = s.do(owner, ActSetThreshold, `{"bps":"lots"}`)
	assert.ErrorIs(t, err, domain.ErrBadPayload)
	_, err = s.do(owner, ActSetThreshold, `{"bps":600,"extra":true}`)
	assert.ErrorIs(t, err, domain.ErrBadPayload)
	_, err = s.do(stranger, ActMint, fmt.Sprintf(`{"token":"stake","to":%q,"amount":"5"}`, stranger.Hex()))
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Contains(t, Actions(), ActPlaceWager)
}

func TestReplayRebuildsState(t *testing.T) {
	j := NewMemoryJournal()
	h := newHost(t, j)
	s := runScenario(t, h)
	_, err := s.do(bettorB, ActClaimWager, `{"event_id":1,"option":0}`)
	require.ErrorIs(t, err, domain.ErrNotAWinner)

	fresh := newHost(t, j)
	n, err := fresh.ReplayJournal(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, int(h.Seq()), n)
	assert.Equal(t, h.Nonce(bettorB), fresh.Nonce(bettorB))

	var want, got domain.Event
	h.View(func(st *State) { want, _ = st.Market.Event(1) })
	fresh.View(func(st *State) { got, _ = st.Market.Event(1) })
	assert.Equal(t, want, got)

	fs := &submitter{t: t, h: fresh, nonces: s.nonces}
	r := fs.ok(bettorA, ActClaimWager, `{"event_id":1,"option":1}`)
	assert.Equal(t, h.Seq()+1, r.Seq)
}

func TestReplayDetectsDivergence(t *testing.T) {
	j := NewMemoryJournal()
	h := newHost(t, j)
	runScenario(t, h)

	receipts, err := j.ListAfter(context.Background(), 0, 0)
	require.NoError(t, err)
	receipts[2].Logs[0].Attrs[0].Value = "99"

	err = newHost(t, NewMemoryJournal()).Replay(context.Background(), receipts)
	assert.ErrorIs(t, err, ErrDiverged)

	err = newHost(t, NewMemoryJournal()).Replay(context.Background(), receipts[1:])
	assert.ErrorIs(t, err, ErrDiverged, "gap in sequence")
}

type failingJournal struct{ *MemoryJournal }

func (failingJournal) Append(context.Context, domain.Receipt) error {
	return errors.New("disk full")
}

func TestJournalFailureHalts(t *testing.T) {
	h := newHost(t, failingJournal{NewMemoryJournal()})
	s := &submitter{t: t, h: h}

	_, err := s.do(stranger, ActSetThreshold, `{"bps":600}`)
	assert.NotErrorIs(t, err, domain.ErrHalted, "failed calls change nothing")

	_, err = s.do(owner, ActSetThreshold, `{"bps":600}`)
	assert.ErrorIs(t, err, domain.ErrHalted)
	_, err = s.do(owner, ActSetThreshold, `{"bps":700}`)
	assert.ErrorIs(t, err, domain.ErrHalted)
}

type recordingSink struct {
	mu   sync.Mutex
	seqs []int64
	done chan struct{}
	want int
}

func (r *recordingSink) Name() string { return "recorder" }

func (r *recordingSink) Handle(_ context.Context, rec domain.Receipt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seqs = append(r.seqs, rec.Seq)
	if len(r.seqs) == r.want {
		close(r.done)
	}
	return errors.New("sink errors are only logged")
}

func TestSinksSeeCommittedReceiptsInOrder(t *testing.T) {
	h := newHost(t, NewMemoryJournal())
	sink := &recordingSink{done: make(chan struct{}), want: 2}
	h.AddSink(sink)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = h.Run(ctx) }()

	s := &submitter{t: t, h: h}
	s.ok(owner, ActSetThreshold, `{"bps":600}`)
	_, err := s.do(stranger, ActSetThreshold, `{"bps":700}`)
	require.Error(t, err)
	s.ok(owner, ActSetThreshold, `{"bps":800}`)

	select {
	case <-sink.done:
	case <-time.After(2 * time.Second):
		t.Fatal("sink did not receive receipts")
	}
	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, []int64{1, 3}, sink.seqs)
}

// viewingSink reads state for every receipt, as the read-model projector does.
type viewingSink struct {
	h    *Host
	mu   sync.Mutex
	seqs []int64
}

func (v *viewingSink) Name() string { return "viewing" }

func (v *viewingSink) Handle(_ context.Context, rec domain.Receipt) error {
	time.Sleep(20 * time.Millisecond)
	v.h.View(func(*State) {})
	v.mu.Lock()
	v.seqs = append(v.seqs, rec.Seq)
	v.mu.Unlock()
	return nil
}

func TestSlowSinkReadingStateDoesNotStallSubmit(t *testing.T) {
	st, err := NewState(testGenesis())
	require.NoError(t, err)
	clock := &stepClock{now: genesisUnix}
	h := NewHost(st, NewMemoryJournal(), nil, HostConfig{QueueSize: 1, Clock: clock.Now}, slog.New(slog.DiscardHandler))
	sink := &viewingSink{h: h}
	h.AddSink(sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = h.Run(ctx) }()

	for i := 1; i <= 5; i++ {
		subCtx, subCancel := context.WithTimeout(context.Background(), 2*time.Second)
		r, err := h.Submit(subCtx, domain.Submission{
			Sender:  owner,
			Nonce:   uint64(i),
			Action:  ActSetThreshold,
			Payload: json.RawMessage(fmt.Sprintf(`{"bps":%d}`, 500+i)),
		})
		subCancel()
		require.NoError(t, err, "submission %d", i)
		require.True(t, r.Success)
	}

	require.Eventually(t, func() bool {
		sink.mu.Lock()
		defer sink.mu.Unlock()
		return len(sink.seqs) == 5
	}, 2*time.Second, 10*time.Millisecond)
	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, sink.seqs)
}

func TestSubmitGivesUpWhenSinksAreFull(t *testing.T) {
	st, err := NewState(testGenesis())
	require.NoError(t, err)
	h := NewHost(st, NewMemoryJournal(), nil, HostConfig{QueueSize: 1}, slog.New(slog.DiscardHandler))

	s := &submitter{t: t, h: h}
	s.ok(owner, ActSetThreshold, `{"bps":600}`)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = h.Submit(ctx, domain.Submission{Sender: owner, Nonce: 2, Action: ActSetThreshold, Payload: json.RawMessage(`{"bps":700}`)})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int64(1), h.Seq(), "nothing executes while the backlog is full")

	h.View(func(*State) {})
}

func TestGenesisDeployment(t *testing.T) {
	st, err := NewState(testGenesis())
	require.NoError(t, err)
	dep := st.Deployment
	assert.Len(t, dep.Collections, 1)
	assert.NotEqual(t, dep.Engine, dep.Treasury)
	assert.Equal(t, domain.RoleHolder, st.Access.Whoami(holder))
	assert.Equal(t, uint16(500), st.Treasury.Threshold())

	again, err := NewState(testGenesis())
	require.NoError(t, err)
	assert.Equal(t, dep, again.Deployment)

	_, err = NewState(Genesis{})
	assert.ErrorIs(t, err, domain.ErrInvalidAddress)
}
