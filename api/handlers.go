package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"folio/domain/book"
	"folio/infra/wal"
	"folio/service"
)

// accountRef identifies a caller by registry id or address. Most
// request bodies embed one.
type accountRef struct {
	AccountID uint64 `json:"account_id,omitempty"`
	Address   string `json:"address,omitempty"`
}

// ----- Accounts -----

type registerRequest struct {
	Address string `json:"address"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	id, err := s.svc.RegisterAccount(req.Address)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"account_id": id,
		"address":    req.Address,
	})
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	addr := mux.Vars(r)["address"]
	id, err := s.svc.IDOf(addr)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	traded, base := s.svc.Balances(id)
	respondJSON(w, http.StatusOK, map[string]any{
		"account_id": id,
		"address":    addr,
		"traded":     traded,
		"base":       base,
	})
}

// ----- Orders -----

type placeRequest struct {
	accountRef
	Side   string          `json:"side"`
	Price  int64           `json:"price"`
	Amount decimal.Decimal `json:"amount"`
}

func (s *Server) handlePlace(w http.ResponseWriter, r *http.Request) {
	var req placeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	side, ok := parseSide(req.Side)
	if !ok {
		respondError(w, http.StatusBadRequest, "side must be sell or buy")
		return
	}
	owner, err := s.resolveAccount(req.AccountID, req.Address)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	id, err := s.svc.PlaceOrder(owner, side, req.Price, req.Amount)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"order_id": id,
		"side":     req.Side,
		"price":    req.Price,
		"amount":   req.Amount,
	})
}

type fillRequest struct {
	accountRef
	Side           string          `json:"side"`
	MaxAmount      decimal.Decimal `json:"max_amount"`
	MaxPrice       int64           `json:"max_price"`
	MaxPricePoints uint32          `json:"max_price_points"`
}

func (s *Server) handleFill(w http.ResponseWriter, r *http.Request) {
	var req fillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	side, ok := parseSide(req.Side)
	if !ok {
		respondError(w, http.StatusBadRequest, "side must be sell or buy")
		return
	}
	taker, err := s.resolveAccount(req.AccountID, req.Address)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	res, err := s.svc.Fill(taker, side, req.MaxAmount, req.MaxPrice, req.MaxPricePoints)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"filled": res.Filled,
		"cost":   res.Cost,
		"fee":    res.Fee,
	})
}

type orderRef struct {
	accountRef
	Side    string `json:"side"`
	Price   int64  `json:"price"`
	OrderID uint32 `json:"order_id"`
}

type claimRequest struct {
	orderRef
	MaxAmount decimal.Decimal `json:"max_amount"`
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	side, ok := parseSide(req.Side)
	if !ok {
		respondError(w, http.StatusBadRequest, "side must be sell or buy")
		return
	}
	caller, err := s.resolveAccount(req.AccountID, req.Address)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	amt, err := s.svc.ClaimOrder(caller, side, req.Price, req.OrderID, req.MaxAmount)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"claimed": amt})
}

type cancelRequest struct {
	orderRef
	MaxLastOrderID uint32 `json:"max_last_order_id"`
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	side, ok := parseSide(req.Side)
	if !ok {
		respondError(w, http.StatusBadRequest, "side must be sell or buy")
		return
	}
	caller, err := s.resolveAccount(req.AccountID, req.Address)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	amt, err := s.svc.CancelOrder(caller, side, req.Price, req.OrderID, req.MaxLastOrderID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"canceled": amt})
}

type transferRequest struct {
	orderRef
	NewOwnerID      uint64 `json:"new_owner_id,omitempty"`
	NewOwnerAddress string `json:"new_owner_address,omitempty"`
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	side, ok := parseSide(req.Side)
	if !ok {
		respondError(w, http.StatusBadRequest, "side must be sell or buy")
		return
	}
	caller, err := s.resolveAccount(req.AccountID, req.Address)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	newOwner, err := s.resolveAccount(req.NewOwnerID, req.NewOwnerAddress)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if err := s.svc.TransferOrder(caller, side, req.Price, req.OrderID, newOwner); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"order_id":  req.OrderID,
		"new_owner": newOwner,
	})
}

// ----- Batch -----

type batchLeg struct {
	Type string `json:"type"`
	placeRequest
	MaxAmount      decimal.Decimal `json:"max_amount"`
	MaxPrice       int64           `json:"max_price"`
	MaxPricePoints uint32          `json:"max_price_points"`
	OrderID        uint32          `json:"order_id"`
	MaxLastOrderID uint32          `json:"max_last_order_id"`
	NewOwnerID     uint64          `json:"new_owner_id"`
}

type batchRequest struct {
	Ops []batchLeg `json:"ops"`
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if len(req.Ops) == 0 {
		respondError(w, http.StatusBadRequest, "ops must not be empty")
		return
	}

	ops := make([]service.Op, len(req.Ops))
	for i, leg := range req.Ops {
		op, err := s.batchLegToOp(leg)
		if err != nil {
			respondError(w, http.StatusBadRequest, "op "+strconv.Itoa(i)+": "+err.Error())
			return
		}
		ops[i] = op
	}

	results := s.svc.ExecuteBatch(ops)
	out := make([]map[string]any, len(results))
	for i, res := range results {
		entry := map[string]any{"type": req.Ops[i].Type, "ok": !res.Failed()}
		if res.Failed() {
			entry["error"] = res.Err.Error()
		} else {
			switch res.Op.Type {
			case wal.RecordPlace:
				entry["order_id"] = res.Result.OrderID
			case wal.RecordFill:
				entry["filled"] = res.Result.Fill.Filled
				entry["cost"] = res.Result.Fill.Cost
				entry["fee"] = res.Result.Fill.Fee
			case wal.RecordClaim, wal.RecordCancel:
				entry["amount"] = res.Result.Amount
			}
		}
		out[i] = entry
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"batch_id": uuid.NewString(),
		"results":  out,
	})
}

func (s *Server) batchLegToOp(leg batchLeg) (service.Op, error) {
	side, ok := parseSide(leg.Side)
	if !ok {
		return service.Op{}, errBadSide
	}
	caller, err := s.resolveAccount(leg.AccountID, leg.Address)
	if err != nil {
		return service.Op{}, err
	}
	op := service.Op{Caller: caller, Side: side, Price: leg.Price}
	switch leg.Type {
	case "place":
		op.Type = wal.RecordPlace
		op.Amount = leg.Amount
	case "fill":
		op.Type = wal.RecordFill
		op.Amount = leg.MaxAmount
		op.MaxPrice = leg.MaxPrice
		op.MaxPricePoints = leg.MaxPricePoints
	case "claim":
		op.Type = wal.RecordClaim
		op.OrderID = leg.OrderID
		op.Amount = leg.MaxAmount
	case "cancel":
		op.Type = wal.RecordCancel
		op.OrderID = leg.OrderID
		op.MaxLastOrderID = leg.MaxLastOrderID
	case "transfer":
		op.Type = wal.RecordTransfer
		op.OrderID = leg.OrderID
		op.NewOwner = leg.NewOwnerID
	default:
		return service.Op{}, errBadOpType
	}
	return op, nil
}

// ----- Fees -----

func (s *Server) handleGetFees(w http.ResponseWriter, r *http.Request) {
	traded, base := s.svc.CollectedFees()
	respondJSON(w, http.StatusOK, map[string]any{
		"traded": traded,
		"base":   base,
	})
}

func (s *Server) handleClaimFees(w http.ResponseWriter, r *http.Request) {
	var req accountRef
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	caller, err := s.resolveAccount(req.AccountID, req.Address)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	traded, base, err := s.svc.ClaimFees(caller)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"traded": traded,
		"base":   base,
	})
}

// ----- Queries -----

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	side, ok := parseSide(vars["side"])
	if !ok {
		respondError(w, http.StatusBadRequest, "side must be sell or buy")
		return
	}
	price, err := strconv.ParseInt(vars["price"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid price")
		return
	}
	id, err := strconv.ParseUint(vars["id"], 10, 32)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order id")
		return
	}
	o, err := s.svc.Order(side, price, uint32(id))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"owner":     o.Owner,
		"amount":    o.Amount,
		"filled":    o.Filled,
		"claimed":   o.Claimed,
		"unclaimed": o.Unclaimed,
		"available": o.Available,
	})
}

func (s *Server) handleGetPricePoint(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	side, ok := parseSide(vars["side"])
	if !ok {
		respondError(w, http.StatusBadRequest, "side must be sell or buy")
		return
	}
	price, err := strconv.ParseInt(vars["price"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid price")
		return
	}
	pp, err := s.svc.PricePoint(side, price)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"last_order_id":  pp.LastOrderID,
		"last_active_id": pp.LastActiveID,
		"total_placed":   pp.TotalPlaced,
		"total_filled":   pp.TotalFilled,
		"available":      pp.Available,
	})
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	depth := 10
	if d := r.URL.Query().Get("depth"); d != "" {
		if v, err := strconv.Atoi(d); err == nil && v > 0 {
			depth = v
		}
	}
	ask, bid := s.svc.Top()
	asks, bids := s.svc.Depth(depth)
	respondJSON(w, http.StatusOK, map[string]any{
		"ask":  ask,
		"bid":  bid,
		"asks": depthJSON(asks),
		"bids": depthJSON(bids),
	})
}

func depthJSON(levels []book.DepthLevel) []map[string]any {
	out := make([]map[string]any, len(levels))
	for i, lvl := range levels {
		out[i] = map[string]any{
			"price":     lvl.Price,
			"available": lvl.Available,
		}
	}
	return out
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":         "healthy",
		"uptime_seconds": int64(time.Since(s.startTime).Seconds()),
		"last_seq":       s.svc.LastSeq(),
	})
}
