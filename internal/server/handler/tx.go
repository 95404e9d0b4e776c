package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/tiqet/internal/crypto"
	"github.com/alanyoungcy/tiqet/internal/domain"
)

// TxService executes signed envelopes.
type TxService interface {
	Submit(ctx context.Context, env crypto.Envelope) (domain.Receipt, error)
}

// TxHandler serves transaction submission.
type TxHandler struct {
	txs    TxService
	logger *slog.Logger
}

// NewTxHandler creates a TxHandler.
func NewTxHandler(txs TxService, logger *slog.Logger) *TxHandler {
	return &TxHandler{txs: txs, logger: logger}
}

type txFailure struct {
	Error   string          `json:"error"`
	Receipt *domain.Receipt `json:"receipt,omitempty"`
}

// Submit executes one signed envelope. A call that reverted was still
// journaled, so its receipt is returned next to the error.
// POST /api/tx
func (h *TxHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var env crypto.Envelope
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&env); err != nil {
		writeError(w, http.StatusBadRequest, "invalid envelope: "+err.Error())
		return
	}

	receipt, err := h.txs.Submit(r.Context(), env)
	if err == nil {
		writeJSON(w, http.StatusOK, receipt)
		return
	}
	if receipt.Seq > 0 {
		writeJSON(w, statusFor(err), txFailure{Error: err.Error(), Receipt: &receipt})
		return
	}
	writeDomainError(w, r, h.logger, "submit tx", err)
}
