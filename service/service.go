// Package service is the only write entry point into the engine. It
// serializes operations, journals every successful one to the WAL and
// stages the resulting event in the outbox.
package service

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"folio/domain/book"
	"folio/infra/ledger"
	"folio/infra/outbox"
	"folio/infra/registry"
	"folio/infra/sequence"
	"folio/infra/wal"
)

// Accounts registered through the service approve the book up to this
// bound on both ledgers, so escrow draws never fail on allowance.
var maxAllowance = decimal.New(1, 27)

// GenesisBalances is the funding a known address receives when it
// registers. Funding happens at registration, not at boot, so replayed
// register operations recreate identical balances.
type GenesisBalances struct {
	Traded decimal.Decimal
	Base   decimal.Decimal
}

// Result carries the engine output of one applied operation.
type Result struct {
	Account   uint64          // register: assigned id
	OrderID   uint32          // place: assigned sequence at the level
	Amount    decimal.Decimal // claim: settled, cancel: withdrawn
	Fill      book.FillResult
	FeeTraded decimal.Decimal // claim_fees
	FeeBase   decimal.Decimal
}

type Service struct {
	mu  sync.Mutex
	log *slog.Logger

	book    *book.Book
	reg     *registry.Registry
	traded  *ledger.Memory
	base    *ledger.Memory
	genesis map[string]GenesisBalances

	wal    *wal.WAL
	outbox *outbox.Outbox
	seq    *sequence.Sequencer

	replaying bool
}

// Deps wires a service. WAL and Outbox may be nil, which disables
// journaling and event publication respectively.
type Deps struct {
	Log      *slog.Logger
	Book     *book.Book
	Registry *registry.Registry
	Traded   *ledger.Memory
	Base     *ledger.Memory
	Genesis  map[string]GenesisBalances
	WAL      *wal.WAL
	Outbox   *outbox.Outbox
}

func New(d Deps) *Service {
	log := d.Log
	if log == nil {
		log = slog.Default()
	}
	var start uint64
	if d.WAL != nil {
		start = d.WAL.LastSeq()
	}
	return &Service{
		log:     log,
		book:    d.Book,
		reg:     d.Registry,
		traded:  d.Traded,
		base:    d.Base,
		genesis: d.Genesis,
		wal:     d.WAL,
		outbox:  d.Outbox,
		seq:     sequence.New(start),
	}
}

// ----- Commands -----

// RegisterAccount assigns an account id to addr, funds it from genesis
// if listed, and grants the book its escrow allowance.
func (s *Service) RegisterAccount(addr string) (uint64, error) {
	res, err := s.do(Op{Type: wal.RecordRegister, Addr: addr})
	return res.Account, err
}

// PlaceOrder rests a limit order for owner.
func (s *Service) PlaceOrder(owner uint64, side book.Side, price int64, amount decimal.Decimal) (uint32, error) {
	res, err := s.do(Op{Type: wal.RecordPlace, Caller: owner, Side: side, Price: price, Amount: amount})
	return res.OrderID, err
}

// Fill sweeps the book for taker.
func (s *Service) Fill(taker uint64, side book.Side, maxAmount decimal.Decimal, maxPrice int64, maxPricePoints uint32) (book.FillResult, error) {
	res, err := s.do(Op{
		Type: wal.RecordFill, Caller: taker, Side: side,
		Amount: maxAmount, MaxPrice: maxPrice, MaxPricePoints: maxPricePoints,
	})
	return res.Fill, err
}

// ClaimOrder settles filled amount back to the order owner.
func (s *Service) ClaimOrder(caller uint64, side book.Side, price int64, id uint32, maxAmount decimal.Decimal) (decimal.Decimal, error) {
	res, err := s.do(Op{
		Type: wal.RecordClaim, Caller: caller, Side: side,
		Price: price, OrderID: id, Amount: maxAmount,
	})
	return res.Amount, err
}

// CancelOrder withdraws an order's unfilled remainder.
func (s *Service) CancelOrder(caller uint64, side book.Side, price int64, id uint32, maxLastOrderID uint32) (decimal.Decimal, error) {
	res, err := s.do(Op{
		Type: wal.RecordCancel, Caller: caller, Side: side,
		Price: price, OrderID: id, MaxLastOrderID: maxLastOrderID,
	})
	return res.Amount, err
}

// TransferOrder reassigns an order to a new owner.
func (s *Service) TransferOrder(caller uint64, side book.Side, price int64, id uint32, newOwner uint64) error {
	_, err := s.do(Op{
		Type: wal.RecordTransfer, Caller: caller, Side: side,
		Price: price, OrderID: id, NewOwner: newOwner,
	})
	return err
}

// ClaimFees drains accrued fees to the treasury.
func (s *Service) ClaimFees(caller uint64) (traded, base decimal.Decimal, err error) {
	res, err := s.do(Op{Type: wal.RecordClaimFees, Caller: caller})
	return res.FeeTraded, res.FeeBase, err
}

// ----- Queries -----

func (s *Service) Order(side book.Side, price int64, id uint32) (book.OrderView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.book.Order(side, price, id)
}

func (s *Service) PricePoint(side book.Side, price int64) (book.LevelView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.book.PricePoint(side, price)
}

// Top returns the best ask and bid, 0 for an empty side.
func (s *Service) Top() (ask, bid int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.book.AskPrice(), s.book.BidPrice()
}

// Depth walks active prices from best to worst, at most limit levels
// per side.
func (s *Service) Depth(limit int) (asks, bids []book.DepthLevel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.book.Depth(limit)
}

func (s *Service) CollectedFees() (traded, base decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.book.CollectedFees()
}

func (s *Service) IDOf(addr string) (uint64, error) {
	return s.reg.IDOf(addr)
}

func (s *Service) AddressOf(id uint64) (string, error) {
	return s.reg.AddressOf(id)
}

func (s *Service) Balances(account uint64) (traded, base decimal.Decimal) {
	return s.traded.BalanceOf(account), s.base.BalanceOf(account)
}

// LastSeq returns the sequence of the last applied operation.
func (s *Service) LastSeq() uint64 {
	return s.seq.Current()
}

// ----- Write path -----

func (s *Service) do(op Op) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.apply(op)
	if err != nil {
		return Result{}, err
	}
	if err := s.journal(op, res); err != nil {
		s.log.Error("journal failed", "type", op.Type.String(), "err", err)
		return Result{}, err
	}
	return res, nil
}

// apply executes one operation against the engine. Callers hold the
// mutex. Replay funnels through here too, so nothing in this path may
// depend on wall-clock time or randomness.
func (s *Service) apply(op Op) (Result, error) {
	var res Result
	var err error
	switch op.Type {
	case wal.RecordRegister:
		res.Account, err = s.register(op.Addr)
	case wal.RecordPlace:
		res.OrderID, err = s.book.PlaceOrder(op.Caller, op.Side, op.Price, op.Amount)
	case wal.RecordFill:
		res.Fill, err = s.book.Fill(op.Caller, op.Side, op.Amount, op.MaxPrice, op.MaxPricePoints)
	case wal.RecordClaim:
		res.Amount, err = s.book.ClaimOrder(op.Caller, op.Side, op.Price, op.OrderID, op.Amount)
	case wal.RecordCancel:
		res.Amount, err = s.book.CancelOrder(op.Caller, op.Side, op.Price, op.OrderID, op.MaxLastOrderID)
	case wal.RecordTransfer:
		err = s.book.TransferOrder(op.Caller, op.Side, op.Price, op.OrderID, op.NewOwner)
	case wal.RecordClaimFees:
		res.FeeTraded, res.FeeBase, err = s.book.ClaimFees(op.Caller)
	default:
		err = book.ErrInvalidArgument
	}
	return res, err
}

func (s *Service) register(addr string) (uint64, error) {
	id, err := s.reg.Register(addr)
	if err != nil {
		return 0, err
	}
	bookID := s.book.AccountID()
	s.traded.Approve(id, bookID, maxAllowance)
	s.base.Approve(id, bookID, maxAllowance)
	if g, ok := s.genesis[addr]; ok {
		if g.Traded.IsPositive() {
			if err := s.traded.Mint(id, g.Traded); err != nil {
				return 0, err
			}
		}
		if g.Base.IsPositive() {
			if err := s.base.Mint(id, g.Base); err != nil {
				return 0, err
			}
		}
	}
	return id, nil
}

// journal records a successful operation and stages its event. A
// journal failure fails the whole operation: the caller must not see
// success for state the WAL will not replay. The sequence advances
// only once the record is down, keeping it in lockstep with the WAL.
// During replay the operation came from the WAL, so nothing is
// written.
func (s *Service) journal(op Op, res Result) error {
	if s.replaying {
		return nil
	}
	now := time.Now().UnixNano()

	var seq uint64
	if s.wal != nil {
		rec := &wal.Record{Type: op.Type, Time: now, Data: EncodeOp(op)}
		if err := s.wal.Append(rec); err != nil {
			return fmt.Errorf("journal %s: %w", op.Type, err)
		}
		seq = s.seq.Next()
		if err := s.wal.Sync(); err != nil {
			return fmt.Errorf("journal sync seq %d: %w", seq, err)
		}
	} else {
		seq = s.seq.Next()
	}

	if s.outbox != nil {
		payload, err := EncodeEvent(s.event(seq, now, op, res))
		if err != nil {
			s.log.Error("event encode failed", "seq", seq, "err", err)
		} else if err := s.outbox.Put(seq, payload); err != nil {
			s.log.Error("outbox put failed", "seq", seq, "err", err)
		}
	}

	s.log.Info("applied",
		"type", op.Type.String(),
		"seq", seq,
		"caller", op.Caller,
		"side", op.Side.String(),
		"price", op.Price,
	)
	return nil
}

func (s *Service) event(seq uint64, now int64, op Op, res Result) Event {
	e := newEvent(seq, op.Type.String(), now)
	e.Caller = op.Caller
	switch op.Type {
	case wal.RecordRegister:
		e.Addr = op.Addr
		e.Account = res.Account
	case wal.RecordPlace:
		e.Side = op.Side.String()
		e.Price = op.Price
		e.Amount = op.Amount
		e.OrderID = res.OrderID
	case wal.RecordFill:
		e.Side = op.Side.String()
		e.Filled = res.Fill.Filled
		e.Cost = res.Fill.Cost
		e.Fee = res.Fill.Fee
	case wal.RecordClaim, wal.RecordCancel:
		e.Side = op.Side.String()
		e.Price = op.Price
		e.OrderID = op.OrderID
		e.Amount = res.Amount
	case wal.RecordTransfer:
		e.Side = op.Side.String()
		e.Price = op.Price
		e.OrderID = op.OrderID
		e.NewOwner = op.NewOwner
	case wal.RecordClaimFees:
		e.FeeTraded = res.FeeTraded
		e.FeeBase = res.FeeBase
	}
	return e
}
