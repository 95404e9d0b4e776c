package domain

import (
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Bus channel and stream names. Every committed log goes to LogsChannel;
// logs carrying an event_id also go to that event's channel.
const (
	LogsChannel   = "tiqet:logs"
	ReceiptStream = "tiqet:receipts"
)

// EventLogsChannel is the channel for logs concerning one event.
func EventLogsChannel(eventID uint64) string {
	return "tiqet:event:" + strconv.FormatUint(eventID, 10) + ":logs"
}

// LogMessage is a committed log as published on the bus.
type LogMessage struct {
	Seq    int64          `json:"seq"`
	TxID   string         `json:"tx_id"`
	Time   time.Time      `json:"time"`
	Sender common.Address `json:"sender"`
	Action string         `json:"action"`
	Index  int            `json:"index"`
	Log    Log            `json:"log"`
}

// LogMessages expands a receipt into one message per log.
func LogMessages(r Receipt) []LogMessage {
	out := make([]LogMessage, len(r.Logs))
	for i, l := range r.Logs {
		out[i] = LogMessage{
			Seq:    r.Seq,
			TxID:   r.TxID,
			Time:   r.Time,
			Sender: r.Sender,
			Action: r.Action,
			Index:  i,
			Log:    l,
		}
	}
	return out
}

// EventID returns the event_id attribute, if the log has one.
func (l Log) EventID() (uint64, bool) {
	v := l.Get("event_id")
	if v == "" {
		return 0, false
	}
	id, err := strconv.ParseUint(v, 10, 64)
	return id, err == nil
}
