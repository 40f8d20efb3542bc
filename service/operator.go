package service

// OpResult pairs one batch leg with its outcome.
type OpResult struct {
	Op     Op
	Result Result
	Err    error
}

// Failed reports whether the leg was rejected.
func (r OpResult) Failed() bool { return r.Err != nil }

// ExecuteBatch applies the operations in order, one result per leg.
// A failed leg does not stop the batch; legs already applied stay
// applied. Callers that need all-or-nothing semantics must not batch.
func (s *Service) ExecuteBatch(ops []Op) []OpResult {
	out := make([]OpResult, len(ops))
	for i, op := range ops {
		res, err := s.do(op)
		out[i] = OpResult{Op: op, Result: res, Err: err}
	}
	return out
}
