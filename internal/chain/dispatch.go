package chain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/alanyoungcy/tiqet/internal/domain"
	"github.com/alanyoungcy/tiqet/internal/treasury"
)

// Action names accepted by Dispatch.
const (
	ActTransferOwnership = "access.transfer_ownership"
	ActAddAdmin          = "access.add_admin"
	ActRemoveAdmin       = "access.remove_admin"
	ActAddProposer       = "access.add_proposer"
	ActRemoveProposer    = "access.remove_proposer"
	ActAddCollection     = "access.add_collection"
	ActRemoveCollection  = "access.remove_collection"

	ActPropose        = "market.propose"
	ActAccept         = "market.accept"
	ActReject         = "market.reject"
	ActTogglePause    = "market.toggle_pause"
	ActResolve        = "market.resolve"
	ActDisqualify     = "market.disqualify"
	ActPlaceWager     = "market.place_wager"
	ActClaimWager     = "market.claim_wager"
	ActRefundWager    = "market.refund_wager"
	ActSetProposalFee = "market.set_proposal_fee"

	ActWithdraw     = "treasury.withdraw"
	ActWithdrawFees = "treasury.withdraw_fees"
	ActSetThreshold = "treasury.set_threshold"
	ActDeposit      = "treasury.deposit"

	ActApprove  = "token.approve"
	ActTransfer = "token.transfer"
	ActMint     = "token.mint"

	ActMintNFT     = "collection.mint"
	ActTransferNFT = "collection.transfer"
)

type handlerFunc func(s *State, call *domain.Call, payload json.RawMessage) (any, error)

var actions = map[string]handlerFunc{
	ActTransferOwnership: func(s *State, c *domain.Call, p json.RawMessage) (any, error) {
		var in struct {
			NewOwner common.Address `json:"new_owner"`
		}
		if err := decode(p, &in); err != nil {
			return nil, err
		}
		return nil, s.Access.TransferOwnership(c, in.NewOwner)
	},
	ActAddAdmin:         accountAction(func(s *State) accountFunc { return s.Access.AddAdmin }),
	ActRemoveAdmin:      accountAction(func(s *State) accountFunc { return s.Access.RemoveAdmin }),
	ActAddProposer:      accountAction(func(s *State) accountFunc { return s.Access.AddProposer }),
	ActRemoveProposer:   accountAction(func(s *State) accountFunc { return s.Access.RemoveProposer }),
	ActAddCollection:    accountAction(func(s *State) accountFunc { return s.Access.AddCollection }),
	ActRemoveCollection: accountAction(func(s *State) accountFunc { return s.Access.RemoveCollection }),

	ActPropose: func(s *State, c *domain.Call, p json.RawMessage) (any, error) {
		var in struct {
			Metadata string `json:"metadata"`
		}
		if err := decode(p, &in); err != nil {
			return nil, err
		}
		id, err := s.Market.Propose(c, in.Metadata)
		if err != nil {
			return nil, err
		}
		return map[string]any{"event_id": id}, nil
	},
	ActAccept: func(s *State, c *domain.Call, p json.RawMessage) (any, error) {
		var in struct {
			EventID uint64 `json:"event_id"`
			domain.AcceptParams
		}
		if err := decode(p, &in); err != nil {
			return nil, err
		}
		return nil, s.Market.Accept(c, in.EventID, in.AcceptParams)
	},
	ActReject: func(s *State, c *domain.Call, p json.RawMessage) (any, error) {
		var in struct {
			EventID uint64 `json:"event_id"`
			Reason  string `json:"reason"`
		}
		if err := decode(p, &in); err != nil {
			return nil, err
		}
		return nil, s.Market.Reject(c, in.EventID, in.Reason)
	},
	ActTogglePause: func(s *State, c *domain.Call, p json.RawMessage) (any, error) {
		in, err := decodeNote(p)
		if err != nil {
			return nil, err
		}
		st, err := s.Market.TogglePause(c, in.EventID, in.Note)
		if err != nil {
			return nil, err
		}
		return map[string]any{"state": st.String()}, nil
	},
	ActResolve: func(s *State, c *domain.Call, p json.RawMessage) (any, error) {
		var in struct {
			EventID uint64 `json:"event_id"`
			Winner  uint8  `json:"winner"`
			Note    string `json:"note"`
		}
		if err := decode(p, &in); err != nil {
			return nil, err
		}
		return nil, s.Market.Resolve(c, in.EventID, in.Winner, in.Note)
	},
	ActDisqualify: func(s *State, c *domain.Call, p json.RawMessage) (any, error) {
		in, err := decodeNote(p)
		if err != nil {
			return nil, err
		}
		return nil, s.Market.Disqualify(c, in.EventID, in.Note)
	},
	ActPlaceWager: func(s *State, c *domain.Call, p json.RawMessage) (any, error) {
		var in struct {
			EventID uint64       `json:"event_id"`
			Option  uint8        `json:"option"`
			Amount  *uint256.Int `json:"amount"`
		}
		if err := decode(p, &in); err != nil {
			return nil, err
		}
		return nil, s.Market.PlaceWager(c, in.EventID, in.Option, in.Amount)
	},
	ActClaimWager: func(s *State, c *domain.Call, p json.RawMessage) (any, error) {
		in, err := decodeWagerRef(p)
		if err != nil {
			return nil, err
		}
		paid, err := s.Market.ClaimWager(c, in.EventID, in.Option)
		if err != nil {
			return nil, err
		}
		return map[string]any{"payout": paid.Dec()}, nil
	},
	ActRefundWager: func(s *State, c *domain.Call, p json.RawMessage) (any, error) {
		in, err := decodeWagerRef(p)
		if err != nil {
			return nil, err
		}
		paid, err := s.Market.RefundWager(c, in.EventID, in.Option)
		if err != nil {
			return nil, err
		}
		return map[string]any{"amount": paid.Dec()}, nil
	},
	ActSetProposalFee: func(s *State, c *domain.Call, p json.RawMessage) (any, error) {
		var in struct {
			Fee *uint256.Int `json:"fee"`
		}
		if err := decode(p, &in); err != nil {
			return nil, err
		}
		return nil, s.Market.SetProposalFee(c, in.Fee)
	},

	ActWithdraw: func(s *State, c *domain.Call, p json.RawMessage) (any, error) {
		amt, err := decodeAmount(p)
		if err != nil {
			return nil, err
		}
		return nil, s.Treasury.Withdraw(c, amt)
	},
	ActWithdrawFees: func(s *State, c *domain.Call, p json.RawMessage) (any, error) {
		amt, err := decodeAmount(p)
		if err != nil {
			return nil, err
		}
		return nil, s.Treasury.WithdrawFees(c, amt)
	},
	ActSetThreshold: func(s *State, c *domain.Call, p json.RawMessage) (any, error) {
		var in struct {
			Bps uint16 `json:"bps"`
		}
		if err := decode(p, &in); err != nil {
			return nil, err
		}
		return nil, s.Treasury.SetThreshold(c, in.Bps)
	},
	ActDeposit: func(s *State, c *domain.Call, p json.RawMessage) (any, error) {
		var in struct {
			Pool   string       `json:"pool"`
			Amount *uint256.Int `json:"amount"`
		}
		if err := decode(p, &in); err != nil {
			return nil, err
		}
		pool, err := treasury.ParsePool(in.Pool)
		if err != nil {
			return nil, err
		}
		return nil, s.Treasury.Collect(c, pool, c.Sender, in.Amount)
	},

	ActApprove: func(s *State, c *domain.Call, p json.RawMessage) (any, error) {
		var in struct {
			Token   string         `json:"token"`
			Spender common.Address `json:"spender"`
			Amount  *uint256.Int   `json:"amount"`
		}
		if err := decode(p, &in); err != nil {
			return nil, err
		}
		tok, err := s.token(in.Token)
		if err != nil {
			return nil, err
		}
		if in.Amount == nil {
			return nil, fmt.Errorf("%w: missing amount", domain.ErrInvalidAmount)
		}
		return nil, tok.Approve(c, c.Sender, in.Spender, in.Amount)
	},
	ActTransfer: func(s *State, c *domain.Call, p json.RawMessage) (any, error) {
		in, err := decodeTokenMove(p)
		if err != nil {
			return nil, err
		}
		tok, err := s.token(in.Token)
		if err != nil {
			return nil, err
		}
		if err := tok.Transfer(c.Sender, in.To, in.Amount); err != nil {
			return nil, err
		}
		c.Emit(domain.LogTransfer,
			domain.Str("token", tok.Symbol()),
			domain.Addr("from", c.Sender),
			domain.Addr("to", in.To),
			domain.Amt("amount", in.Amount),
		)
		return nil, nil
	},
	ActMint: func(s *State, c *domain.Call, p json.RawMessage) (any, error) {
		if err := s.Access.RequireOwner(c.Sender); err != nil {
			return nil, err
		}
		in, err := decodeTokenMove(p)
		if err != nil {
			return nil, err
		}
		tok, err := s.token(in.Token)
		if err != nil {
			return nil, err
		}
		return nil, tok.Mint(c, in.To, in.Amount)
	},

	ActMintNFT: func(s *State, c *domain.Call, p json.RawMessage) (any, error) {
		if err := s.Access.RequireOwner(c.Sender); err != nil {
			return nil, err
		}
		in, err := decodeNFTMove(p)
		if err != nil {
			return nil, err
		}
		col, err := s.Collections.Get(in.Collection)
		if err != nil {
			return nil, err
		}
		return nil, col.Mint(c, in.To, in.TokenID)
	},
	ActTransferNFT: func(s *State, c *domain.Call, p json.RawMessage) (any, error) {
		in, err := decodeNFTMove(p)
		if err != nil {
			return nil, err
		}
		col, err := s.Collections.Get(in.Collection)
		if err != nil {
			return nil, err
		}
		return nil, col.Transfer(c, c.Sender, in.To, in.TokenID)
	},
}

// Dispatch routes action to its operation with call as the execution
// context. It serves both live submissions and journal replay.
func (s *State) Dispatch(call *domain.Call, action string, payload json.RawMessage) (any, error) {
	h, ok := actions[action]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownAction, action)
	}
	return h(s, call, payload)
}

// Actions lists the accepted action names in sorted order.
func Actions() []string {
	out := make([]string, 0, len(actions))
	for name := range actions {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

type accountFunc func(*domain.Call, common.Address) error

func accountAction(pick func(*State) accountFunc) handlerFunc {
	return func(s *State, c *domain.Call, p json.RawMessage) (any, error) {
		var in struct {
			Account common.Address `json:"account"`
		}
		if err := decode(p, &in); err != nil {
			return nil, err
		}
		return nil, pick(s)(c, in.Account)
	}
}

type noteRef struct {
	EventID uint64 `json:"event_id"`
	Note    string `json:"note"`
}

func decodeNote(p json.RawMessage) (noteRef, error) {
	var in noteRef
	return in, decode(p, &in)
}

type wagerRef struct {
	EventID uint64 `json:"event_id"`
	Option  uint8  `json:"option"`
}

func decodeWagerRef(p json.RawMessage) (wagerRef, error) {
	var in wagerRef
	return in, decode(p, &in)
}

func decodeAmount(p json.RawMessage) (*uint256.Int, error) {
	var in struct {
		Amount *uint256.Int `json:"amount"`
	}
	if err := decode(p, &in); err != nil {
		return nil, err
	}
	return in.Amount, nil
}

type tokenMove struct {
	Token  string         `json:"token"`
	To     common.Address `json:"to"`
	Amount *uint256.Int   `json:"amount"`
}

func decodeTokenMove(p json.RawMessage) (tokenMove, error) {
	var in tokenMove
	if err := decode(p, &in); err != nil {
		return in, err
	}
	if in.Amount == nil || in.Amount.IsZero() {
		return in, fmt.Errorf("%w: amount must be positive", domain.ErrInvalidAmount)
	}
	return in, nil
}

type nftMove struct {
	Collection common.Address `json:"collection"`
	To         common.Address `json:"to"`
	TokenID    uint64         `json:"token_id"`
}

func decodeNFTMove(p json.RawMessage) (nftMove, error) {
	var in nftMove
	return in, decode(p, &in)
}

// decode strictly unmarshals an action payload. An empty payload decodes as
// an empty object.
func decode(p json.RawMessage, v any) error {
	if len(bytes.TrimSpace(p)) == 0 {
		p = json.RawMessage("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(p))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrBadPayload, err)
	}
	return nil
}
