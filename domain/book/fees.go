package book

import "github.com/shopspring/decimal"

// feeVault is the running uncollected-fee balance per asset. It is
// credited whenever a fill or claim settles a fee-bearing leg and
// drained as a whole by the treasury's ClaimFees.
type feeVault struct {
	traded decimal.Decimal
	base   decimal.Decimal
}

func (v *feeVault) creditTraded(amount decimal.Decimal) {
	if amount.IsPositive() {
		v.traded = v.traded.Add(amount)
	}
}

func (v *feeVault) creditBase(amount decimal.Decimal) {
	if amount.IsPositive() {
		v.base = v.base.Add(amount)
	}
}

func (v *feeVault) drain() (traded, base decimal.Decimal) {
	traded, base = v.traded, v.base
	v.traded, v.base = decimal.Zero, decimal.Zero
	return traded, base
}
