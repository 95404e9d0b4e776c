package service

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tiqet/internal/domain"
)

func TestTouched(t *testing.T) {
	acct := common.HexToAddress("0x00000000000000000000000000000000000000b0")
	logs := []domain.Log{
		{Name: domain.LogTransfer, Attrs: []domain.Attr{domain.Addr("from", acct)}},
		{Name: domain.LogWagerPlaced, Attrs: []domain.Attr{
			domain.U64("event_id", 3), domain.Addr("account", acct), domain.U64("option", 1),
		}},
		{Name: domain.LogWagerPlaced, Attrs: []domain.Attr{
			domain.U64("event_id", 3), domain.Addr("account", acct), domain.U64("option", 1),
		}},
		{Name: domain.LogEventResolved, Attrs: []domain.Attr{domain.U64("event_id", 2), domain.U64("winner", 0)}},
		{Name: domain.LogWagerPlaced, Attrs: []domain.Attr{
			domain.U64("event_id", 3), domain.Str("account", "nope"), domain.U64("option", 0),
		}},
	}
	ids, keys := touched(logs)
	assert.Equal(t, []uint64{3, 2}, ids)
	assert.Equal(t, []domain.WagerKey{{EventID: 3, Account: acct, Option: 1}}, keys)
}

func TestProjectorHandle(t *testing.T) {
	signer := mustSigner(t)
	h := newTestHost(t, signer.Address())
	_, rs := openEvent(t, h, signer.Address())

	events, wagers, cache := newMemEvents(), newMemWagers(), newMemCache()
	p := NewProjector(h, events, wagers, cache, discard())
	for _, r := range rs {
		require.NoError(t, p.Handle(context.Background(), r))
	}

	ev, err := events.GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, domain.EventOpened, ev.State)
	assert.Equal(t, "20", ev.Stakes[1].Dec())
	assert.Contains(t, cache.rows, uint64(1))

	w, err := wagers.Get(context.Background(), domain.WagerKey{EventID: 1, Account: bettorA, Option: 1})
	require.NoError(t, err)
	assert.Equal(t, "20", w.Amount.Dec())

	// Reprojecting is harmless.
	require.NoError(t, p.Handle(context.Background(), rs[len(rs)-1]))
	assert.Len(t, wagers.rows, 1)
}

func TestProjectorBackfillAndCacheFailure(t *testing.T) {
	signer := mustSigner(t)
	h := newTestHost(t, signer.Address())
	openEvent(t, h, signer.Address())

	events, wagers, cache := newMemEvents(), newMemWagers(), newMemCache()
	cache.setErr = errors.New("redis down")
	p := NewProjector(h, events, wagers, cache, discard())

	n, err := p.Backfill(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, events.rows, 1)
	assert.Len(t, wagers.rows, 1)
	assert.Equal(t, []uint64{1}, cache.invalidated)
}

func TestProjectorStoreFailure(t *testing.T) {
	signer := mustSigner(t)
	h := newTestHost(t, signer.Address())
	_, rs := openEvent(t, h, signer.Address())

	events := newMemEvents()
	events.err = errors.New("pg down")
	p := NewProjector(h, events, newMemWagers(), nil, discard())
	err := p.Handle(context.Background(), rs[1])
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pg down")
}
