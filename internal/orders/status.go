package orders

import "errors"

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusShipping  Status = "shipping"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

var ErrIllegalTransition = errors.New("illegal order status transition")

var validNext = map[Status]map[Status]bool{
	StatusPending:   {StatusConfirmed: true, StatusCancelled: true},
	StatusConfirmed: {StatusShipping: true, StatusCancelled: true},
	StatusShipping:  {StatusDelivered: true},
	StatusDelivered: {},
	StatusCancelled: {},
}

func (s Status) Valid() bool {
	_, ok := validNext[s]
	return ok
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// CanBeCancelled gates the customer cancel action. Shipping and later
// states cannot be cancelled, which also makes the stock release on cancel
// naturally run at most once.
func CanBeCancelled(s Status) bool {
	return s == StatusPending || s == StatusConfirmed
}
