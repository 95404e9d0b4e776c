package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tiqet/internal/domain"
	"github.com/alanyoungcy/tiqet/internal/notify"
)

func sampleReceipt() domain.Receipt {
	return domain.Receipt{
		Seq:     7,
		TxID:    "tx-7",
		Sender:  common.HexToAddress("0x00000000000000000000000000000000000000a1"),
		Nonce:   3,
		Action:  "market.resolve",
		Success: true,
		Logs: []domain.Log{
			{Name: domain.LogTransfer, Attrs: []domain.Attr{domain.Str("amount", "5")}},
			{Name: domain.LogEventResolved, Attrs: []domain.Attr{
				domain.U64("event_id", 4), domain.U64("winner", 1), domain.Str("note", "photo"),
			}},
		},
	}
}

func TestAuditSinkLogsPrivilegedOnly(t *testing.T) {
	audit := &memAudit{}
	require.NoError(t, NewAuditSink(audit).Handle(context.Background(), sampleReceipt()))

	require.Equal(t, []string{"log.EventResolved"}, audit.names)
	d := audit.details[0]
	assert.Equal(t, int64(7), d["seq"])
	assert.Equal(t, "tx-7", d["tx_id"])
	assert.Equal(t, "market.resolve", d["action"])
	assert.Equal(t, "4", d["event_id"])
	assert.Equal(t, "1", d["winner"])
}

func TestPublisherFansOut(t *testing.T) {
	bus := newMemBus()
	require.NoError(t, NewPublisher(bus).Handle(context.Background(), sampleReceipt()))

	require.Len(t, bus.streamed[domain.ReceiptStream], 1)
	var r domain.Receipt
	require.NoError(t, json.Unmarshal(bus.streamed[domain.ReceiptStream][0], &r))
	assert.Equal(t, int64(7), r.Seq)

	assert.Len(t, bus.published[domain.LogsChannel], 2)
	perEvent := bus.published[domain.EventLogsChannel(4)]
	require.Len(t, perEvent, 1)
	var msg domain.LogMessage
	require.NoError(t, json.Unmarshal(perEvent[0], &msg))
	assert.Equal(t, 1, msg.Index)
	assert.Equal(t, domain.LogEventResolved, msg.Log.Name)
}

func TestPublisherReportsBusErrors(t *testing.T) {
	bus := newMemBus()
	bus.err = assert.AnError
	err := NewPublisher(bus).Handle(context.Background(), sampleReceipt())
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
}

type captureSender struct{ got []notify.Message }

func (c *captureSender) Send(_ context.Context, m notify.Message) error {
	c.got = append(c.got, m)
	return nil
}

func (c *captureSender) Name() string { return "capture" }

func TestAlertsSink(t *testing.T) {
	s := &captureSender{}
	n := notify.NewNotifier([]notify.Sender{s}, []string{domain.LogEventResolved}, discard())
	require.NoError(t, NewAlerts(n).Handle(context.Background(), sampleReceipt()))

	require.Len(t, s.got, 1)
	assert.Equal(t, "Event 4 resolved, option 1 wins", s.got[0].Title)
	assert.Equal(t, "photo", s.got[0].Fields["note"])
	assert.Equal(t, int64(7), s.got[0].Seq)
}

func TestAlertTitle(t *testing.T) {
	tests := []struct {
		log  domain.Log
		want string
	}{
		{domain.Log{Name: domain.LogTreasuryWithdrawn, Attrs: []domain.Attr{domain.Str("amount", "9")}}, "Treasury withdrawal of 9"},
		{domain.Log{Name: domain.LogEventDisqualified, Attrs: []domain.Attr{domain.U64("event_id", 2)}}, "Event 2 disqualified"},
		{domain.Log{Name: domain.LogWagerPlaced, Attrs: []domain.Attr{domain.U64("event_id", 2)}}, "Wager placed on event 2"},
		{domain.Log{Name: domain.LogAdminAdded}, "Admin added"},
	}
	for _, tt := range tests {
		t.Run(tt.log.Name, func(t *testing.T) {
			assert.Equal(t, tt.want, alertTitle(tt.log))
		})
	}
}
