package ledger

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestMintAndBalance(t *testing.T) {
	l := NewMemory("USD")
	if err := l.Mint(1, d("100")); err != nil {
		t.Fatal(err)
	}
	if err := l.Mint(1, d("50")); err != nil {
		t.Fatal(err)
	}
	if got := l.BalanceOf(1); !got.Equal(d("150")) {
		t.Fatalf("balance = %s, want 150", got)
	}
	if got := l.BalanceOf(99); !got.IsZero() {
		t.Fatalf("unknown account balance = %s, want 0", got)
	}
	if err := l.Mint(1, decimal.Zero); err == nil {
		t.Fatal("zero mint must fail")
	}
}

func TestTransfer(t *testing.T) {
	l := NewMemory("USD")
	l.Mint(1, d("100"))

	if err := l.Transfer(1, 2, d("30")); err != nil {
		t.Fatal(err)
	}
	if got := l.BalanceOf(1); !got.Equal(d("70")) {
		t.Fatalf("sender = %s, want 70", got)
	}
	if got := l.BalanceOf(2); !got.Equal(d("30")) {
		t.Fatalf("receiver = %s, want 30", got)
	}

	if err := l.Transfer(1, 2, d("100")); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("overdraw: got %v, want ErrInsufficientBalance", err)
	}
	if got := l.BalanceOf(1); !got.Equal(d("70")) {
		t.Fatal("failed transfer must not move funds")
	}

	// Zero transfer is a valid no-op.
	if err := l.Transfer(1, 2, decimal.Zero); err != nil {
		t.Fatalf("zero transfer: %v", err)
	}
}

func TestTransferFromAllowance(t *testing.T) {
	l := NewMemory("USD")
	l.Mint(1, d("100"))
	l.Approve(1, 5, d("40"))

	if got := l.Allowance(1, 5); !got.Equal(d("40")) {
		t.Fatalf("allowance = %s, want 40", got)
	}
	if err := l.TransferFrom(5, 1, 2, d("30")); err != nil {
		t.Fatal(err)
	}
	if got := l.Allowance(1, 5); !got.Equal(d("10")) {
		t.Fatalf("allowance after draw = %s, want 10", got)
	}
	if err := l.TransferFrom(5, 1, 2, d("20")); !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("over-allowance: got %v, want ErrInsufficientAllowance", err)
	}
	// Self-spend needs no allowance.
	if err := l.TransferFrom(1, 1, 3, d("10")); err != nil {
		t.Fatalf("self spend: %v", err)
	}
}

func TestTransferHook(t *testing.T) {
	l := NewMemory("USD")
	l.Mint(1, d("100"))

	var calls int
	l.SetTransferHook(func(from, to uint64, amount decimal.Decimal) {
		calls++
		// The hook must observe the post-transfer state.
		if got := l.BalanceOf(to); got.Cmp(amount) < 0 {
			t.Errorf("hook saw receiver balance %s before credit of %s", got, amount)
		}
	})

	if err := l.Transfer(1, 2, d("25")); err != nil {
		t.Fatal(err)
	}
	if err := l.TransferFrom(1, 1, 2, d("25")); err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Fatalf("hook calls = %d, want 2", calls)
	}

	// Failed transfers never fire the hook.
	l.Transfer(1, 2, d("1000"))
	if calls != 2 {
		t.Fatal("hook fired on failed transfer")
	}

	l.SetTransferHook(nil)
	l.Transfer(1, 2, d("1"))
	if calls != 2 {
		t.Fatal("hook fired after removal")
	}
}
