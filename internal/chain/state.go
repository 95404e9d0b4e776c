// Package chain hosts the protocol as a deterministic state machine. A Host
// executes one submission at a time against State, journals a signed receipt
// for each, and fans committed logs out to sinks. Replaying the journal from
// the same Genesis rebuilds the same State.
package chain

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/alanyoungcy/tiqet/internal/access"
	"github.com/alanyoungcy/tiqet/internal/domain"
	"github.com/alanyoungcy/tiqet/internal/ledger"
	"github.com/alanyoungcy/tiqet/internal/market"
	"github.com/alanyoungcy/tiqet/internal/treasury"
)

// Genesis is the initial configuration every replay starts from.
type Genesis struct {
	Owner        common.Address
	Time         time.Time
	ProposalFee  *uint256.Int
	ThresholdBps uint16
	StakeSymbol  string
	FeeSymbol    string
	Mints        []GenesisMint
	Collections  []GenesisCollection
}

// GenesisMint credits an initial balance. Token is "stake" or "fees".
type GenesisMint struct {
	Token  string
	To     common.Address
	Amount *uint256.Int
}

// GenesisCollection deploys an NFT collection, recognizes it for the holder
// tier and mints token ids 1..len(Holders) to Holders in order.
type GenesisCollection struct {
	Name    string
	Holders []common.Address
}

// Deployment lists the accounts genesis created.
type Deployment struct {
	Stake       common.Address   `json:"stake_token"`
	Fees        common.Address   `json:"fee_token"`
	Engine      common.Address   `json:"engine"`
	Treasury    common.Address   `json:"treasury"`
	Collections []common.Address `json:"collections"`
}

// State is every protocol component, wired together.
type State struct {
	Access      *access.Registry
	Stake       *ledger.Token
	Fees        *ledger.Token
	Collections *ledger.Collections
	Market      *market.Engine
	Treasury    *treasury.Guard
	Deployment  Deployment
}

// NewState builds State from g. Component accounts are derived from the owner
// the same way contract addresses derive from a deployer and its nonce.
func NewState(g Genesis) (*State, error) {
	if g.Owner == domain.ZeroAddress {
		return nil, fmt.Errorf("chain: genesis: %w: owner is the zero address", domain.ErrInvalidAddress)
	}
	if g.StakeSymbol == "" {
		g.StakeSymbol = "TIQ"
	}
	if g.FeeSymbol == "" {
		g.FeeSymbol = "QUSD"
	}
	if g.ThresholdBps == 0 {
		g.ThresholdBps = treasury.DefaultThresholdBps
	}

	var nonce uint64
	next := func() common.Address {
		a := ethcrypto.CreateAddress(g.Owner, nonce)
		nonce++
		return a
	}
	dep := Deployment{Stake: next(), Fees: next(), Engine: next(), Treasury: next()}

	collections := ledger.NewCollections()
	reg := access.NewRegistry(g.Owner, collections)
	stake := ledger.NewToken(dep.Stake, g.StakeSymbol)
	fees := ledger.NewToken(dep.Fees, g.FeeSymbol)
	guard, err := treasury.New(dep.Treasury, reg, stake, fees, g.ThresholdBps)
	if err != nil {
		return nil, fmt.Errorf("chain: genesis: %w", err)
	}
	engine := market.New(market.Config{
		Address:     dep.Engine,
		Treasury:    dep.Treasury,
		ProposalFee: g.ProposalFee,
	}, reg, stake, fees)

	s := &State{
		Access:      reg,
		Stake:       stake,
		Fees:        fees,
		Collections: collections,
		Market:      engine,
		Treasury:    guard,
	}

	call := domain.NewCall("genesis", g.Owner, g.Time)
	for _, m := range g.Mints {
		tok, err := s.token(m.Token)
		if err != nil {
			return nil, fmt.Errorf("chain: genesis mint: %w", err)
		}
		if err := tok.Mint(call, m.To, m.Amount); err != nil {
			return nil, fmt.Errorf("chain: genesis mint: %w", err)
		}
	}
	for _, gc := range g.Collections {
		col := ledger.NewCollection(next(), gc.Name)
		if err := collections.Deploy(col); err != nil {
			return nil, fmt.Errorf("chain: genesis collection %q: %w", gc.Name, err)
		}
		for i, holder := range gc.Holders {
			if err := col.Mint(call, holder, uint64(i+1)); err != nil {
				return nil, fmt.Errorf("chain: genesis collection %q: %w", gc.Name, err)
			}
		}
		if err := reg.AddCollection(call, col.Address()); err != nil {
			return nil, fmt.Errorf("chain: genesis collection %q: %w", gc.Name, err)
		}
		dep.Collections = append(dep.Collections, col.Address())
	}
	s.Deployment = dep
	return s, nil
}

// token resolves "stake" or "fees" (or a token symbol) to its ledger.
func (s *State) token(name string) (*ledger.Token, error) {
	switch name {
	case "stake", s.Stake.Symbol():
		return s.Stake, nil
	case "fees", s.Fees.Symbol():
		return s.Fees, nil
	}
	return nil, fmt.Errorf("%w: unknown token %q", domain.ErrBadPayload, name)
}
