package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/tiqet/internal/chain"
	"github.com/alanyoungcy/tiqet/internal/domain"
	"github.com/alanyoungcy/tiqet/internal/service"
)

// AccountQueries are the reads about accounts, roles and the treasury.
type AccountQueries interface {
	Account(ctx context.Context, account common.Address) service.AccountView
	WagersOf(ctx context.Context, account common.Address, opts domain.ListOpts) ([]domain.Wager, error)
	Roles(ctx context.Context) service.RolesView
	Treasury(ctx context.Context) service.TreasuryView
	Deployment(ctx context.Context) chain.Deployment
	Receipt(ctx context.Context, txID string) (domain.Receipt, error)
}

// AccountHandler serves account, role, treasury and receipt reads.
type AccountHandler struct {
	queries AccountQueries
	logger  *slog.Logger
}

// NewAccountHandler creates an AccountHandler.
func NewAccountHandler(queries AccountQueries, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{queries: queries, logger: logger}
}

// GetRole returns an account's role, balances and last nonce.
// GET /api/accounts/{account}/role
func (h *AccountHandler) GetRole(w http.ResponseWriter, r *http.Request) {
	account, err := parseAddress(r.PathValue("account"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.queries.Account(r.Context(), account))
}

// ListWagers returns an account's wagers.
// GET /api/accounts/{account}/wagers?limit=50&offset=0
func (h *AccountHandler) ListWagers(w http.ResponseWriter, r *http.Request) {
	account, err := parseAddress(r.PathValue("account"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	wagers, err := h.queries.WagersOf(r.Context(), account, parseListOpts(r))
	if err != nil {
		writeDomainError(w, r, h.logger, "list wagers", err)
		return
	}
	if wagers == nil {
		wagers = []domain.Wager{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"wagers": wagers})
}

// GetRoles lists every privileged account.
// GET /api/roles
func (h *AccountHandler) GetRoles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.queries.Roles(r.Context()))
}

// GetTreasury returns treasury balances.
// GET /api/treasury
func (h *AccountHandler) GetTreasury(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.queries.Treasury(r.Context()))
}

// GetDeployment returns the component addresses, which clients need to
// approve the engine before wagering.
// GET /api/deployment
func (h *AccountHandler) GetDeployment(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.queries.Deployment(r.Context()))
}

// GetReceipt returns a journaled receipt by tx id.
// GET /api/receipts/{id}
func (h *AccountHandler) GetReceipt(w http.ResponseWriter, r *http.Request) {
	receipt, err := h.queries.Receipt(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, h.logger, "get receipt", err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}
