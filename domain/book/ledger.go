package book

import "github.com/shopspring/decimal"

// Ledger is the external asset ledger the engine settles against, one
// instance per asset. Accounts are compact registry ids. The engine
// draws exactly the settlement amount it computes; a failed transfer
// aborts the whole operation.
type Ledger interface {
	BalanceOf(account uint64) decimal.Decimal
	Transfer(from, to uint64, amount decimal.Decimal) error
	TransferFrom(spender, from, to uint64, amount decimal.Decimal) error
	Allowance(owner, spender uint64) decimal.Decimal
}

// Registry resolves a compact account id back to an external address.
// The engine only needs resolution; registration lives with the
// collaborator.
type Registry interface {
	AddressOf(id uint64) (string, error)
}
