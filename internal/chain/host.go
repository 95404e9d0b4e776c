package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/alanyoungcy/tiqet/internal/domain"
)

// Sink consumes committed receipts after they are journaled. A sink failure
// is logged and never affects the committed call.
type Sink interface {
	Name() string
	Handle(ctx context.Context, r domain.Receipt) error
}

// ReceiptSigner signs receipts with the node key.
type ReceiptSigner interface {
	SignReceipt(r domain.Receipt) (string, error)
}

// HostConfig tunes a Host.
type HostConfig struct {
	// QueueSize bounds receipts waiting for sinks. Submit waits for room
	// before it executes, never while holding the state.
	QueueSize int
	// Clock supplies block time; defaults to time.Now in UTC.
	Clock func() time.Time
}

// Host is the single producer: it executes submissions one at a time.
type Host struct {
	mu      sync.Mutex
	state   *State
	journal domain.Journal
	signer  ReceiptSigner
	sinks   []Sink
	slots   chan struct{}
	ready   chan struct{}
	qmu     sync.Mutex
	pending []domain.Receipt
	clock   func() time.Time
	logger  *slog.Logger

	seq      int64
	lastTime time.Time
	nonces   map[common.Address]uint64
	halted   error
}

// NewHost creates a host over state. signer may be nil, in which case
// receipts are left unsigned.
func NewHost(state *State, journal domain.Journal, signer ReceiptSigner, cfg HostConfig, logger *slog.Logger) *Host {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.Clock == nil {
		cfg.Clock = func() time.Time { return time.Now().UTC() }
	}
	return &Host{
		state:   state,
		journal: journal,
		signer:  signer,
		slots:   make(chan struct{}, cfg.QueueSize),
		ready:   make(chan struct{}, 1),
		clock:   cfg.Clock,
		logger:  logger.With(slog.String("component", "chain_host")),
		nonces:  make(map[common.Address]uint64),
	}
}

// AddSink registers s. Call before Run.
func (h *Host) AddSink(s Sink) { h.sinks = append(h.sinks, s) }

// Seq is the last committed sequence number.
func (h *Host) Seq() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.seq
}

// Nonce is the last nonce sender used, 0 if none.
func (h *Host) Nonce(sender common.Address) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.nonces[sender]
}

// Submit executes sub. The returned receipt is journaled whether the call
// succeeded or not; the returned error is the protocol error of a failed
// call, or a node error when nothing was journaled (Seq == 0).
func (h *Host) Submit(ctx context.Context, sub domain.Submission) (domain.Receipt, error) {
	select {
	case h.slots <- struct{}{}:
	case <-ctx.Done():
		return domain.Receipt{}, fmt.Errorf("chain: waiting for sinks: %w", ctx.Err())
	}
	queued := false
	defer func() {
		if !queued {
			<-h.slots
		}
	}()

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.halted != nil {
		return domain.Receipt{}, fmt.Errorf("%w: %v", domain.ErrHalted, h.halted)
	}
	if last := h.nonces[sub.Sender]; sub.Nonce <= last {
		return domain.Receipt{}, fmt.Errorf("%w: nonce %d, last used %d", domain.ErrNonceReused, sub.Nonce, last)
	}

	// Postgres keeps microseconds; truncate so replayed calls see the same time.
	now := h.clock().Truncate(time.Microsecond)
	if now.Before(h.lastTime) {
		now = h.lastTime
	}
	call := domain.NewCall(uuid.NewString(), sub.Sender, now)
	result, callErr := h.state.Dispatch(call, sub.Action, sub.Payload)

	r := domain.Receipt{
		Seq:     h.seq + 1,
		TxID:    call.TxID,
		Sender:  sub.Sender,
		Nonce:   sub.Nonce,
		Action:  sub.Action,
		Payload: sub.Payload,
		Time:    now,
		Success: callErr == nil,
		Logs:    []domain.Log{},
	}
	if callErr != nil {
		r.Error = callErr.Error()
	} else {
		r.Logs = append(r.Logs, call.Logs()...)
		if result != nil {
			b, err := json.Marshal(result)
			if err != nil {
				return domain.Receipt{}, h.halt(fmt.Errorf("encode result of %s: %w", sub.Action, err))
			}
			r.Result = b
		}
	}
	if h.signer != nil {
		sig, err := h.signer.SignReceipt(r)
		if err != nil {
			if r.Success {
				return domain.Receipt{}, h.halt(err)
			}
			return domain.Receipt{}, err
		}
		r.Signature = sig
	}

	if err := h.journal.Append(ctx, r); err != nil {
		if r.Success {
			return domain.Receipt{}, h.halt(fmt.Errorf("journal append seq %d: %w", r.Seq, err))
		}
		return domain.Receipt{}, fmt.Errorf("chain: journal append: %w", err)
	}
	h.seq = r.Seq
	h.lastTime = now
	h.nonces[sub.Sender] = sub.Nonce

	if r.Success {
		h.enqueue(r)
		queued = true
	}
	return r, callErr
}

// enqueue hands r to Run. Callers hold h.mu, so receipts queue in seq order.
func (h *Host) enqueue(r domain.Receipt) {
	h.qmu.Lock()
	h.pending = append(h.pending, r)
	h.qmu.Unlock()
	select {
	case h.ready <- struct{}{}:
	default:
	}
}

func (h *Host) dequeue() (domain.Receipt, bool) {
	h.qmu.Lock()
	defer h.qmu.Unlock()
	if len(h.pending) == 0 {
		return domain.Receipt{}, false
	}
	r := h.pending[0]
	h.pending[0] = domain.Receipt{}
	h.pending = h.pending[1:]
	return r, true
}

// halt stops the producer after a committed state change could not be made
// durable. In-memory state is ahead of the journal from here on; the node
// must restart and replay.
func (h *Host) halt(err error) error {
	h.halted = err
	h.logger.Error("producer halted; restart to replay from the journal",
		slog.String("error", err.Error()),
	)
	return fmt.Errorf("%w: %v", domain.ErrHalted, err)
}

// ErrDiverged reports that replaying a receipt did not reproduce it.
var ErrDiverged = errors.New("replay diverged from journal")

// Replay re-executes journaled receipts in order. Successful receipts must
// succeed again with identical logs; failed ones only advance the nonce.
func (h *Host) Replay(ctx context.Context, receipts []domain.Receipt) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, r := range receipts {
		if err := ctx.Err(); err != nil {
			return err
		}
		if r.Seq != h.seq+1 {
			return fmt.Errorf("chain: replay: seq %d after %d: %w", r.Seq, h.seq, ErrDiverged)
		}
		if r.Success {
			call := domain.NewCall(r.TxID, r.Sender, r.Time)
			if _, err := h.state.Dispatch(call, r.Action, r.Payload); err != nil {
				return fmt.Errorf("chain: replay seq %d (%s) failed with %v: %w", r.Seq, r.Action, err, ErrDiverged)
			}
			if !sameLogs(call.Logs(), r.Logs) {
				return fmt.Errorf("chain: replay seq %d (%s) emitted different logs: %w", r.Seq, r.Action, ErrDiverged)
			}
		}
		h.seq = r.Seq
		h.lastTime = r.Time
		if r.Nonce > h.nonces[r.Sender] {
			h.nonces[r.Sender] = r.Nonce
		}
	}
	return nil
}

// ReplayJournal replays everything in the journal after the current Seq and
// returns how many receipts were applied.
func (h *Host) ReplayJournal(ctx context.Context, pageSize int) (int, error) {
	if pageSize <= 0 {
		pageSize = 500
	}
	total := 0
	for {
		page, err := h.journal.ListAfter(ctx, h.Seq(), pageSize)
		if err != nil {
			return total, fmt.Errorf("chain: replay: list journal: %w", err)
		}
		if len(page) == 0 {
			return total, nil
		}
		if err := h.Replay(ctx, page); err != nil {
			return total, err
		}
		total += len(page)
	}
}

// Run fans committed receipts out to sinks until ctx is done.
func (h *Host) Run(ctx context.Context) error {
	for {
		r, ok := h.dequeue()
		if !ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-h.ready:
				continue
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, s := range h.sinks {
			if err := s.Handle(ctx, r); err != nil {
				h.logger.WarnContext(ctx, "sink failed",
					slog.String("sink", s.Name()),
					slog.Int64("seq", r.Seq),
					slog.String("error", err.Error()),
				)
			}
		}
		<-h.slots
	}
}

// View runs fn with exclusive access to the state. fn must not retain
// pointers into it.
func (h *Host) View(fn func(s *State)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fn(h.state)
}

// Receipt looks up a journaled receipt.
func (h *Host) Receipt(ctx context.Context, txID string) (domain.Receipt, error) {
	return h.journal.GetByTxID(ctx, txID)
}

func sameLogs(a, b []domain.Log) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	return errA == nil && errB == nil && bytes.Equal(ja, jb)
}
