package registry

import (
	"errors"
	"testing"
)

func TestRegisterAssignsSequentialIDs(t *testing.T) {
	r := New()

	id1, err := r.Register("0xaaa")
	if err != nil {
		t.Fatal(err)
	}
	id2, err := r.Register("0xbbb")
	if err != nil {
		t.Fatal(err)
	}
	if id1 != 1 || id2 != 2 {
		t.Fatalf("ids = %d, %d, want 1, 2", id1, id2)
	}
	if r.Len() != 2 {
		t.Fatalf("len = %d, want 2", r.Len())
	}
}

func TestLookupBothWays(t *testing.T) {
	r := New()
	id, _ := r.Register("0xaaa")

	got, err := r.IDOf("0xaaa")
	if err != nil || got != id {
		t.Fatalf("IDOf = %d, %v", got, err)
	}
	addr, err := r.AddressOf(id)
	if err != nil || addr != "0xaaa" {
		t.Fatalf("AddressOf = %q, %v", addr, err)
	}

	if _, err := r.IDOf("0xmissing"); !errors.Is(err, ErrNotRegistered) {
		t.Errorf("unknown address: got %v, want ErrNotRegistered", err)
	}
	if _, err := r.AddressOf(99); !errors.Is(err, ErrNotRegistered) {
		t.Errorf("unknown id: got %v, want ErrNotRegistered", err)
	}
	if _, err := r.AddressOf(0); !errors.Is(err, ErrNotRegistered) {
		t.Errorf("id 0 must never resolve: got %v", err)
	}
}

func TestRegisterRejectsDuplicatesAndEmpty(t *testing.T) {
	r := New()
	if _, err := r.Register(""); !errors.Is(err, ErrEmptyAddress) {
		t.Errorf("empty address: got %v, want ErrEmptyAddress", err)
	}
	if _, err := r.Register("0xaaa"); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Register("0xaaa"); !errors.Is(err, ErrAlreadyRegistered) {
		t.Errorf("duplicate: got %v, want ErrAlreadyRegistered", err)
	}
}
