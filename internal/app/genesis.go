package app

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/alanyoungcy/tiqet/internal/chain"
	"github.com/alanyoungcy/tiqet/internal/config"
	"github.com/alanyoungcy/tiqet/internal/domain"
)

// genesisFrom converts the genesis section of the config. Mint tokens may be
// named "stake" or "fees", or by their configured symbols.
func genesisFrom(cfg config.GenesisConfig) (chain.Genesis, error) {
	fee := new(uint256.Int)
	if cfg.ProposalFee != "" {
		var err error
		if fee, err = domain.ParseAmount(cfg.ProposalFee); err != nil {
			return chain.Genesis{}, fmt.Errorf("genesis: proposal_fee: %w", err)
		}
	}

	g := chain.Genesis{
		Owner:        common.HexToAddress(cfg.Owner),
		Time:         cfg.Time.UTC(),
		ProposalFee:  fee,
		ThresholdBps: uint16(cfg.ThresholdBps),
		StakeSymbol:  cfg.StakeSymbol,
		FeeSymbol:    cfg.FeeSymbol,
	}
	for i, m := range cfg.Mints {
		amount, err := domain.ParseAmount(m.Amount)
		if err != nil {
			return chain.Genesis{}, fmt.Errorf("genesis: mints[%d]: %w", i, err)
		}
		token := m.Token
		switch token {
		case cfg.StakeSymbol:
			token = "stake"
		case cfg.FeeSymbol:
			token = "fees"
		}
		g.Mints = append(g.Mints, chain.GenesisMint{Token: token, To: common.HexToAddress(m.To), Amount: amount})
	}
	for _, c := range cfg.Collections {
		holders := make([]common.Address, len(c.Holders))
		for i, h := range c.Holders {
			holders[i] = common.HexToAddress(h)
		}
		g.Collections = append(g.Collections, chain.GenesisCollection{Name: c.Name, Holders: holders})
	}
	return g, nil
}
