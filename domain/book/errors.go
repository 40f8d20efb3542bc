package book

import "errors"

// Input validation: the caller supplied a value the engine cannot act on.
var (
	ErrInvalidAmount   = errors.New("book: invalid amount")
	ErrInvalidPrice    = errors.New("book: invalid price")
	ErrInvalidArgument = errors.New("book: invalid argument")
	ErrInvalidOrderID  = errors.New("book: invalid order id")
)

// Authorization: the caller lacks the required relationship to the order.
var ErrUnauthorized = errors.New("book: unauthorized")

// State conflict: the request is inconsistent with the current book
// state, usually because activity since the caller's last observation
// changed it.
var (
	ErrOrderDeleted       = errors.New("book: order deleted")
	ErrAlreadyFilled      = errors.New("book: order already filled")
	ErrOverMaxLastOrderID = errors.New("book: level advanced past max last order id")
	ErrCannotPlaceOrder   = errors.New("book: order would cross the book")
)
