package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tiqet/internal/chain"
	"github.com/alanyoungcy/tiqet/internal/crypto"
	"github.com/alanyoungcy/tiqet/internal/domain"
)

const ownerKey = "b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291"

var (
	holder  = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	bettorA = common.HexToAddress("0x00000000000000000000000000000000000000b0")
)

func discard() *slog.Logger { return slog.New(slog.DiscardHandler) }

func newTestHost(t *testing.T, owner common.Address) *chain.Host {
	t.Helper()
	st, err := chain.NewState(chain.Genesis{
		Owner:        owner,
		Time:         time.Unix(1_700_000_000, 0).UTC(),
		ProposalFee:  uint256.NewInt(10),
		ThresholdBps: 500,
		Mints: []chain.GenesisMint{
			{Token: "fees", To: holder, Amount: uint256.NewInt(100)},
			{Token: "stake", To: bettorA, Amount: uint256.NewInt(1_000)},
		},
		Collections: []chain.GenesisCollection{{Name: "Founders", Holders: []common.Address{holder}}},
	})
	require.NoError(t, err)
	return chain.NewHost(st, chain.NewMemoryJournal(), nil, chain.HostConfig{}, discard())
}

// drive submits actions with increasing nonces per sender.
type drive struct {
	t      *testing.T
	h      *chain.Host
	nonces map[common.Address]uint64
}

func (d *drive) ok(sender common.Address, action, payload string) domain.Receipt {
	d.t.Helper()
	if d.nonces == nil {
		d.nonces = make(map[common.Address]uint64)
	}
	d.nonces[sender]++
	r, err := d.h.Submit(context.Background(), domain.Submission{
		Sender: sender, Nonce: d.nonces[sender], Action: action, Payload: json.RawMessage(payload),
	})
	require.NoError(d.t, err, action)
	return r
}

// openEvent proposes event 1 as holder, opens it and places one wager.
func openEvent(t *testing.T, h *chain.Host, owner common.Address) (*drive, []domain.Receipt) {
	t.Helper()
	d := &drive{t: t, h: h}
	var engine common.Address
	h.View(func(s *chain.State) { engine = s.Deployment.Engine })

	var rs []domain.Receipt
	rs = append(rs, d.ok(holder, chain.ActApprove, fmt.Sprintf(`{"token":"fees","spender":%q,"amount":"10"}`, engine.Hex())))
	rs = append(rs, d.ok(holder, chain.ActPropose, `{"metadata":"derby"}`))
	rs = append(rs, d.ok(owner, chain.ActAccept, `{"event_id":1,"vig":100,"max_per_bet":"100","liquidity":"500","end_time":4000000000,"options":2}`))
	rs = append(rs, d.ok(bettorA, chain.ActApprove, fmt.Sprintf(`{"token":"stake","spender":%q,"amount":"100"}`, engine.Hex())))
	rs = append(rs, d.ok(bettorA, chain.ActPlaceWager, `{"event_id":1,"option":1,"amount":"20"}`))
	return d, rs
}

type memEvents struct {
	mu   sync.Mutex
	rows map[uint64]domain.Event
	err  error
}

func newMemEvents() *memEvents { return &memEvents{rows: make(map[uint64]domain.Event)} }

func (m *memEvents) Upsert(_ context.Context, ev domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.rows[ev.ID] = ev
	return nil
}

func (m *memEvents) GetByID(_ context.Context, id uint64) (domain.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.rows[id]
	if !ok {
		return domain.Event{}, domain.ErrNotFound
	}
	return ev, nil
}

func (m *memEvents) List(_ context.Context, _ domain.EventFilter, _ domain.ListOpts) ([]domain.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Event, 0, len(m.rows))
	for _, ev := range m.rows {
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memEvents) Count(context.Context) (int64, error) { return int64(len(m.rows)), nil }

type memWagers struct {
	mu   sync.Mutex
	rows map[domain.WagerKey]domain.Wager
}

func newMemWagers() *memWagers { return &memWagers{rows: make(map[domain.WagerKey]domain.Wager)} }

func (m *memWagers) Upsert(_ context.Context, w domain.Wager) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[w.WagerKey] = w
	return nil
}

func (m *memWagers) Get(_ context.Context, k domain.WagerKey) (domain.Wager, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.rows[k]
	if !ok {
		return domain.Wager{}, domain.ErrNotFound
	}
	return w, nil
}

func (m *memWagers) ListByEvent(context.Context, uint64, domain.ListOpts) ([]domain.Wager, error) {
	return nil, nil
}

func (m *memWagers) ListByAccount(_ context.Context, a common.Address, _ domain.ListOpts) ([]domain.Wager, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Wager
	for k, w := range m.rows {
		if k.Account == a {
			out = append(out, w)
		}
	}
	return out, nil
}

type memCache struct {
	mu          sync.Mutex
	rows        map[uint64]domain.Event
	gets        int
	invalidated []uint64
	setErr      error
}

func newMemCache() *memCache { return &memCache{rows: make(map[uint64]domain.Event)} }

func (c *memCache) Set(_ context.Context, ev domain.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	c.rows[ev.ID] = ev
	return nil
}

func (c *memCache) Get(_ context.Context, id uint64) (domain.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	ev, ok := c.rows[id]
	if !ok {
		return domain.Event{}, domain.ErrNotFound
	}
	return ev, nil
}

func (c *memCache) Invalidate(_ context.Context, id uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.rows, id)
	c.invalidated = append(c.invalidated, id)
	return nil
}

type memAudit struct {
	names   []string
	details []map[string]any
}

func (a *memAudit) Log(_ context.Context, event string, detail map[string]any) error {
	a.names = append(a.names, event)
	a.details = append(a.details, detail)
	return nil
}

func (a *memAudit) List(context.Context, domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

type memBus struct {
	published map[string][][]byte
	streamed  map[string][][]byte
	err       error
}

func newMemBus() *memBus {
	return &memBus{published: make(map[string][][]byte), streamed: make(map[string][][]byte)}
}

func (b *memBus) Publish(_ context.Context, channel string, payload []byte) error {
	if b.err != nil {
		return b.err
	}
	b.published[channel] = append(b.published[channel], payload)
	return nil
}

func (b *memBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return nil, errors.New("not supported")
}

func (b *memBus) StreamAppend(_ context.Context, stream string, payload []byte) error {
	b.streamed[stream] = append(b.streamed[stream], payload)
	return nil
}

func (b *memBus) StreamRead(context.Context, string, string, int) ([]domain.StreamMessage, error) {
	return nil, nil
}

func mustSigner(t *testing.T) *crypto.Signer {
	t.Helper()
	s, err := crypto.NewSigner(ownerKey, 31337)
	require.NoError(t, err)
	return s
}
