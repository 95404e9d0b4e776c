// Package ledger provides the in-process fungible and NFT ledgers the protocol
// settles against. They follow ERC-20 / ERC-721 balance semantics; failed
// operations leave every balance untouched.
package ledger

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/alanyoungcy/tiqet/internal/domain"
)

// Token is a fungible ledger. Not safe for concurrent use.
type Token struct {
	address    common.Address
	symbol     string
	supply     uint256.Int
	balances   map[common.Address]*uint256.Int
	allowances map[common.Address]map[common.Address]*uint256.Int
}

// NewToken creates an empty ledger living at address.
func NewToken(address common.Address, symbol string) *Token {
	return &Token{
		address:    address,
		symbol:     symbol,
		balances:   make(map[common.Address]*uint256.Int),
		allowances: make(map[common.Address]map[common.Address]*uint256.Int),
	}
}

// Address is the ledger's own account.
func (t *Token) Address() common.Address { return t.address }

// Symbol is the ticker.
func (t *Token) Symbol() string { return t.symbol }

// TotalSupply is everything ever minted minus everything burned.
func (t *Token) TotalSupply() *uint256.Int { return t.supply.Clone() }

// BalanceOf returns a copy of account's balance.
func (t *Token) BalanceOf(account common.Address) *uint256.Int {
	if b, ok := t.balances[account]; ok {
		return b.Clone()
	}
	return new(uint256.Int)
}

// Allowance is what spender may still move out of owner's balance.
func (t *Token) Allowance(owner, spender common.Address) *uint256.Int {
	if a, ok := t.allowances[owner][spender]; ok {
		return a.Clone()
	}
	return new(uint256.Int)
}

// Mint creates amount for to. Minting to the zero address is allowed; that
// balance is parked and excluded from circulation by its readers.
func (t *Token) Mint(call *domain.Call, to common.Address, amount *uint256.Int) error {
	supply, overflow := new(uint256.Int).AddOverflow(&t.supply, amount)
	if overflow {
		return fmt.Errorf("%w: %s mint overflows supply", domain.ErrInvalidAmount, t.symbol)
	}
	t.supply.Set(supply)
	t.credit(to, amount)
	t.emitTransfer(call, domain.ZeroAddress, to, amount)
	return nil
}

// Burn destroys amount from from's balance.
func (t *Token) Burn(call *domain.Call, from common.Address, amount *uint256.Int) error {
	if err := t.debit(from, amount); err != nil {
		return err
	}
	t.supply.Sub(&t.supply, amount)
	t.emitTransfer(call, from, domain.ZeroAddress, amount)
	return nil
}

// Approve sets spender's allowance over owner's balance.
func (t *Token) Approve(call *domain.Call, owner, spender common.Address, amount *uint256.Int) error {
	per, ok := t.allowances[owner]
	if !ok {
		per = make(map[common.Address]*uint256.Int)
		t.allowances[owner] = per
	}
	per[spender] = amount.Clone()
	if call != nil {
		call.Emit(domain.LogApproval,
			domain.Str("token", t.symbol),
			domain.Addr("owner", owner),
			domain.Addr("spender", spender),
			domain.Amt("amount", amount),
		)
	}
	return nil
}

// Transfer moves amount from from to to.
func (t *Token) Transfer(from, to common.Address, amount *uint256.Int) error {
	if err := t.debit(from, amount); err != nil {
		return err
	}
	t.credit(to, amount)
	return nil
}

// TransferFrom moves amount from from to to on spender's allowance.
func (t *Token) TransferFrom(spender, from, to common.Address, amount *uint256.Int) error {
	allowance := t.Allowance(from, spender)
	if allowance.Lt(amount) {
		return fmt.Errorf("%w: %s allowance %s of %s for %s below %s",
			domain.ErrTransferFailed, t.symbol, allowance.Dec(), from.Hex(), spender.Hex(), amount.Dec())
	}
	if err := t.debit(from, amount); err != nil {
		return err
	}
	t.allowances[from][spender] = allowance.Sub(allowance, amount)
	t.credit(to, amount)
	return nil
}

func (t *Token) debit(account common.Address, amount *uint256.Int) error {
	bal := t.BalanceOf(account)
	if bal.Lt(amount) {
		return fmt.Errorf("%w: %s balance %s of %s below %s",
			domain.ErrTransferFailed, t.symbol, bal.Dec(), account.Hex(), amount.Dec())
	}
	t.balances[account] = bal.Sub(bal, amount)
	return nil
}

func (t *Token) credit(account common.Address, amount *uint256.Int) {
	bal := t.BalanceOf(account)
	t.balances[account] = bal.Add(bal, amount)
}

func (t *Token) emitTransfer(call *domain.Call, from, to common.Address, amount *uint256.Int) {
	if call == nil {
		return
	}
	call.Emit(domain.LogTransfer,
		domain.Str("token", t.symbol),
		domain.Addr("from", from),
		domain.Addr("to", to),
		domain.Amt("amount", amount),
	)
}
