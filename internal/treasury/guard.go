// Package treasury holds protocol reserves in two tokens and gates owner
// withdrawals of the wager token behind a minimum reserve expressed as a
// fraction of circulating supply.
package treasury

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/alanyoungcy/tiqet/internal/domain"
)

// DefaultThresholdBps is the reserve floor used when none is configured: 5%.
const DefaultThresholdBps = 500

// Authorizer is the slice of the access registry the guard consults.
type Authorizer interface {
	Owner() common.Address
	RequireOwner(account common.Address) error
}

// Pool selects one of the two treasury balances.
type Pool uint8

const (
	// PoolReserve is the threshold-guarded wager token balance.
	PoolReserve Pool = iota
	// PoolFees is the fee token balance.
	PoolFees
)

func (p Pool) String() string {
	if p == PoolFees {
		return "fees"
	}
	return "reserve"
}

// ParsePool maps "reserve" or "fees" to a Pool.
func ParsePool(s string) (Pool, error) {
	switch s {
	case "reserve", "":
		return PoolReserve, nil
	case "fees":
		return PoolFees, nil
	}
	return 0, fmt.Errorf("%w: unknown treasury pool %q", domain.ErrInvalidOption, s)
}

// Guard is the treasury. Not safe for concurrent use.
type Guard struct {
	self      common.Address
	auth      Authorizer
	reserve   domain.FungibleLedger
	fees      domain.FungibleLedger
	threshold uint16
}

// New creates a guard at address self with the given threshold in basis
// points (1..10000).
func New(self common.Address, auth Authorizer, reserve, fees domain.FungibleLedger, thresholdBps uint16) (*Guard, error) {
	if err := validThreshold(thresholdBps); err != nil {
		return nil, err
	}
	return &Guard{
		self:      self,
		auth:      auth,
		reserve:   reserve,
		fees:      fees,
		threshold: thresholdBps,
	}, nil
}

// Address is the treasury's account.
func (g *Guard) Address() common.Address { return g.self }

// Threshold is the reserve floor in basis points of circulating supply.
func (g *Guard) Threshold() uint16 { return g.threshold }

// Fund is the treasury's wager token balance.
func (g *Guard) Fund() *uint256.Int { return g.reserve.BalanceOf(g.self) }

// FeeFund is the treasury's fee token balance.
func (g *Guard) FeeFund() *uint256.Int { return g.fees.BalanceOf(g.self) }

// Circulating is the wager token supply outside the zero address.
func (g *Guard) Circulating() *uint256.Int {
	supply := g.reserve.TotalSupply()
	parked := g.reserve.BalanceOf(domain.ZeroAddress)
	return supply.Sub(supply, parked)
}

// MinimumReserve is threshold × circulating / 10000.
func (g *Guard) MinimumReserve() *uint256.Int {
	z, _ := new(uint256.Int).MulDivOverflow(g.Circulating(), uint256.NewInt(uint64(g.threshold)), uint256.NewInt(domain.BasisPoints))
	return z
}

// SetThreshold changes the reserve floor. Owner only.
func (g *Guard) SetThreshold(call *domain.Call, bps uint16) error {
	if err := g.auth.RequireOwner(call.Sender); err != nil {
		return err
	}
	if err := validThreshold(bps); err != nil {
		return err
	}
	prev := g.threshold
	g.threshold = bps
	call.Emit(domain.LogThresholdSet,
		domain.U64("previous_bps", uint64(prev)),
		domain.U64("bps", uint64(bps)),
	)
	return nil
}

// Withdraw sends amount of the wager token to the owner, provided what stays
// behind covers the minimum reserve.
func (g *Guard) Withdraw(call *domain.Call, amount *uint256.Int) error {
	if err := g.auth.RequireOwner(call.Sender); err != nil {
		return err
	}
	if amount == nil || amount.IsZero() {
		return fmt.Errorf("%w: withdraw amount must be positive", domain.ErrInvalidAmount)
	}
	bal := g.Fund()
	floor := g.MinimumReserve()
	if amount.Gt(bal) {
		return fmt.Errorf("%w: withdraw %s exceeds fund %s", domain.ErrBelowReserveThreshold, amount.Dec(), bal.Dec())
	}
	remaining := new(uint256.Int).Sub(bal, amount)
	if remaining.Lt(floor) {
		return fmt.Errorf("%w: %s would remain, floor is %s", domain.ErrBelowReserveThreshold, remaining.Dec(), floor.Dec())
	}
	owner := g.auth.Owner()
	if err := g.Give(PoolReserve, owner, amount); err != nil {
		return err
	}
	call.Emit(domain.LogTreasuryWithdrawn,
		domain.Addr("to", owner),
		domain.Amt("amount", amount),
		domain.Amt("remaining", remaining),
	)
	return nil
}

// WithdrawFees sends amount of the fee token to the owner. No reserve floor
// applies to fees.
func (g *Guard) WithdrawFees(call *domain.Call, amount *uint256.Int) error {
	if err := g.auth.RequireOwner(call.Sender); err != nil {
		return err
	}
	if amount == nil || amount.IsZero() {
		return fmt.Errorf("%w: withdraw amount must be positive", domain.ErrInvalidAmount)
	}
	owner := g.auth.Owner()
	if err := g.Give(PoolFees, owner, amount); err != nil {
		return err
	}
	call.Emit(domain.LogTreasuryFeesWithdrawn,
		domain.Addr("to", owner),
		domain.Amt("amount", amount),
	)
	return nil
}

// Collect pulls amount of the pool's token from from into the treasury using
// the allowance from granted the treasury.
func (g *Guard) Collect(call *domain.Call, pool Pool, from common.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return fmt.Errorf("%w: collect amount must be positive", domain.ErrInvalidAmount)
	}
	if err := g.ledger(pool).TransferFrom(g.self, from, g.self, amount); err != nil {
		return fmt.Errorf("treasury: collect %s: %w", pool, err)
	}
	call.Emit(domain.LogTreasuryCollected,
		domain.Str("pool", pool.String()),
		domain.Addr("from", from),
		domain.Amt("amount", amount),
	)
	return nil
}

// Give transfers amount of the pool's token from the treasury to to. It is
// the single outflow path; callers enforce their own guards.
func (g *Guard) Give(pool Pool, to common.Address, amount *uint256.Int) error {
	if err := g.ledger(pool).Transfer(g.self, to, amount); err != nil {
		return fmt.Errorf("treasury: give %s: %w", pool, err)
	}
	return nil
}

func (g *Guard) ledger(p Pool) domain.FungibleLedger {
	if p == PoolFees {
		return g.fees
	}
	return g.reserve
}

func validThreshold(bps uint16) error {
	if bps == 0 || bps > domain.BasisPoints {
		return fmt.Errorf("%w: threshold %d bp outside 1..%d", domain.ErrInvalidAmount, bps, domain.BasisPoints)
	}
	return nil
}
