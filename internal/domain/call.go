package domain

import (
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Attr is one key/value pair on a log. Values are rendered as strings so logs
// hash and replay identically everywhere.
type Attr struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Str builds a string attribute.
func Str(key, v string) Attr { return Attr{Key: key, Value: v} }

// U64 builds an unsigned integer attribute.
func U64(key string, v uint64) Attr { return Attr{Key: key, Value: strconv.FormatUint(v, 10)} }

// Addr builds an address attribute.
func Addr(key string, v common.Address) Attr { return Attr{Key: key, Value: v.Hex()} }

// Amt builds an amount attribute in decimal.
func Amt(key string, v *uint256.Int) Attr { return Attr{Key: key, Value: v.Dec()} }

// Log is a named record emitted by a successful call.
type Log struct {
	Name  string `json:"name"`
	Attrs []Attr `json:"attrs"`
}

// Get returns the value for key, or "".
func (l Log) Get(key string) string {
	for _, a := range l.Attrs {
		if a.Key == key {
			return a.Value
		}
	}
	return ""
}

// Map flattens the attributes.
func (l Log) Map() map[string]any {
	m := make(map[string]any, len(l.Attrs))
	for _, a := range l.Attrs {
		m[a.Key] = a.Value
	}
	return m
}

// Call carries the execution context of one mutating call: who sent it, the
// block time it executes at, and the logs it emits. A Call is used by exactly
// one operation and discarded with its logs if that operation fails.
type Call struct {
	TxID   string
	Sender common.Address
	Time   time.Time
	logs   []Log
}

// NewCall starts a call context.
func NewCall(txID string, sender common.Address, at time.Time) *Call {
	return &Call{TxID: txID, Sender: sender, Time: at}
}

// Unix is the block time in seconds.
func (c *Call) Unix() int64 { return c.Time.Unix() }

// Emit records a log.
func (c *Call) Emit(name string, attrs ...Attr) {
	c.logs = append(c.logs, Log{Name: name, Attrs: attrs})
}

// Logs returns what the call emitted so far.
func (c *Call) Logs() []Log { return c.logs }

// Log names emitted by protocol components.
const (
	LogOwnershipTransferred = "OwnershipTransferred"
	LogAdminAdded           = "AdminAdded"
	LogAdminRemoved         = "AdminRemoved"
	LogProposerAdded        = "ProposerAdded"
	LogProposerRemoved      = "ProposerRemoved"
	LogCollectionAdded      = "CollectionAdded"
	LogCollectionRemoved    = "CollectionRemoved"

	LogEventProposed     = "EventProposed"
	LogEventAccepted     = "EventAccepted"
	LogEventRejected     = "EventRejected"
	LogEventPaused       = "EventPaused"
	LogEventUnpaused     = "EventUnpaused"
	LogEventResolved     = "EventResolved"
	LogEventDisqualified = "EventDisqualified"
	LogWagerPlaced       = "WagerPlaced"
	LogWagerClaimed      = "WagerClaimed"
	LogWagerRefunded     = "WagerRefunded"
	LogProposalFeeSet    = "ProposalFeeSet"

	LogTreasuryWithdrawn     = "TreasuryWithdrawn"
	LogTreasuryFeesWithdrawn = "TreasuryFeesWithdrawn"
	LogTreasuryCollected     = "TreasuryCollected"
	LogThresholdSet          = "ThresholdSet"

	LogTransfer = "Transfer"
	LogApproval = "Approval"
)
