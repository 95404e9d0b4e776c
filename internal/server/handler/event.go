package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/alanyoungcy/tiqet/internal/domain"
	"github.com/alanyoungcy/tiqet/internal/service"
)

// EventQueries are the reads the event endpoints need.
type EventQueries interface {
	Event(ctx context.Context, id uint64) (domain.Event, error)
	Events(ctx context.Context, filter domain.EventFilter, opts domain.ListOpts) ([]domain.Event, error)
	Quote(ctx context.Context, id uint64) (service.QuoteView, error)
	Wager(ctx context.Context, key domain.WagerKey) (domain.Wager, error)
}

// EventHandler serves event, quote and wager reads.
type EventHandler struct {
	events EventQueries
	logger *slog.Logger
}

// NewEventHandler creates an EventHandler.
func NewEventHandler(events EventQueries, logger *slog.Logger) *EventHandler {
	return &EventHandler{events: events, logger: logger}
}

type listEventsResponse struct {
	Events []domain.Event `json:"events"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// ListEvents returns events in id order.
// GET /api/events?state=opened&proposer=0x..&limit=50&offset=0
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	var filter domain.EventFilter
	q := r.URL.Query()
	if v := q.Get("state"); v != "" {
		st, err := domain.ParseEventState(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter.State = &st
	}
	if v := q.Get("proposer"); v != "" {
		addr, err := parseAddress(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter.Proposer = &addr
	}

	opts := parseListOpts(r)
	events, err := h.events.Events(r.Context(), filter, opts)
	if err != nil {
		writeDomainError(w, r, h.logger, "list events", err)
		return
	}
	if events == nil {
		events = []domain.Event{}
	}
	writeJSON(w, http.StatusOK, listEventsResponse{Events: events, Limit: opts.Limit, Offset: opts.Offset})
}

// GetEvent returns one event.
// GET /api/events/{id}
func (h *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	id, err := parseEventID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ev, err := h.events.Event(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, h.logger, "get event", err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

// GetQuote returns the implied price of each option.
// GET /api/events/{id}/quote
func (h *EventHandler) GetQuote(w http.ResponseWriter, r *http.Request) {
	id, err := parseEventID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	quote, err := h.events.Quote(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, h.logger, "quote event", err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

// GetWager returns one account's wager on one option.
// GET /api/events/{id}/wagers/{account}/{option}
func (h *EventHandler) GetWager(w http.ResponseWriter, r *http.Request) {
	id, err := parseEventID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	account, err := parseAddress(r.PathValue("account"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	option, err := strconv.ParseUint(r.PathValue("option"), 10, 8)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid option")
		return
	}

	wager, err := h.events.Wager(r.Context(), domain.WagerKey{EventID: id, Account: account, Option: uint8(option)})
	if err != nil {
		writeDomainError(w, r, h.logger, "get wager", err)
		return
	}
	writeJSON(w, http.StatusOK, wager)
}
