package domain

import (
	"encoding/json"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Submission is a request to execute one action as Sender.
type Submission struct {
	Sender  common.Address
	Nonce   uint64
	Action  string
	Payload json.RawMessage
}

// Receipt is the outcome of one executed submission. Receipts are journaled in
// Seq order; replaying the successful ones from genesis rebuilds the state.
type Receipt struct {
	Seq     int64           `json:"seq"`
	TxID    string          `json:"tx_id"`
	Sender  common.Address  `json:"sender"`
	Nonce   uint64          `json:"nonce"`
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload"`
	Time    time.Time       `json:"time"`
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Logs    []Log           `json:"logs"`
	// Signature is the node key's signature over Digest, hex encoded.
	Signature string `json:"signature,omitempty"`
}

// SigningBody is the receipt without its signature, the bytes the node signs.
func (r Receipt) SigningBody() ([]byte, error) {
	r.Signature = ""
	return json.Marshal(r)
}
