package models

import (
	"fmt"
	"math"
	"time"
)

// amountPrecision is the number of decimal places kept on monetary amounts.
const amountPrecision = 6

// Ticket is a single numbered slot in the lottery. A ticket is created
// inactive when reserved and flipped active once its payment is confirmed.
// Ticket numbers start at 1, are assigned consecutively and never reused.
type Ticket struct {
	Number    int64     `json:"number"`
	Owner     string    `json:"owner"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

func NewTicket(number int64, owner string) (*Ticket, error) {
	if number < 1 {
		return nil, fmt.Errorf("ticket number must be positive, got %d", number)
	}
	if owner == "" {
		return nil, fmt.Errorf("ticket %d has no owner", number)
	}
	return &Ticket{Number: number, Owner: owner, CreatedAt: time.Now()}, nil
}

// Payment is the pending obligation produced by a reservation. It transitions
// confirmed=false -> true exactly once; the transition records the tx hash.
type Payment struct {
	ID        int64     `json:"id"`
	Owner     string    `json:"owner"`
	InvoiceID string    `json:"invoice_id"`
	Amount    float64   `json:"amount"`
	TxHash    string    `json:"tx_hash,omitempty"`
	Confirmed bool      `json:"confirmed"`
	CreatedAt time.Time `json:"created_at"`
}

func NewPayment(owner, invoiceID string, amount float64) (*Payment, error) {
	if owner == "" {
		return nil, fmt.Errorf("payment has no owner")
	}
	if invoiceID == "" {
		return nil, fmt.Errorf("payment has no invoice id")
	}
	if amount <= 0 {
		return nil, fmt.Errorf("payment amount must be positive, got %v", amount)
	}
	return &Payment{Owner: owner, InvoiceID: invoiceID, Amount: amount, CreatedAt: time.Now()}, nil
}

// Draw is the immutable record of the prize draw. Winners are ticket numbers
// in sampling order; Prizes[i] was assigned to Winners[i].
type Draw struct {
	ID      int64     `json:"id"`
	DrawnAt time.Time `json:"drawn_at"`
	Winners []int64   `json:"winners"`
	Prizes  []float64 `json:"prizes"`
}

func NewDraw(winners []int64, prizes []float64) (*Draw, error) {
	if len(winners) != len(prizes) {
		return nil, fmt.Errorf("draw has %d winners but %d prizes", len(winners), len(prizes))
	}
	if len(winners) == 0 {
		return nil, fmt.Errorf("draw has no winners")
	}
	seen := make(map[int64]bool, len(winners))
	for _, w := range winners {
		if w < 1 {
			return nil, fmt.Errorf("invalid winning ticket number %d", w)
		}
		if seen[w] {
			return nil, fmt.Errorf("duplicate winning ticket number %d", w)
		}
		seen[w] = true
	}
	return &Draw{DrawnAt: time.Now(), Winners: winners, Prizes: prizes}, nil
}

// Activation is what a confirmed payment produced: the owner and the ticket
// numbers flipped active, in selection order (ticket number descending).
type Activation struct {
	Owner   string  `json:"owner"`
	Tickets []int64 `json:"tickets"`
	Amount  float64 `json:"amount"`
}

// BuyerStanding is one row of the active-ticket leaderboard.
type BuyerStanding struct {
	Owner   string `json:"owner"`
	Tickets int64  `json:"tickets"`
}

// InvoiceID derives the lookup key for a reservation's payment. It is
// deterministic and only unique per (owner, ticket range): a lookup key,
// not a global identifier.
func InvoiceID(owner string, first, last int64) string {
	return fmt.Sprintf("%s-%d-%d", owner, first, last)
}

// RoundAmount normalizes a monetary amount to the fixed decimal precision.
func RoundAmount(v float64) float64 {
	shift := math.Pow10(amountPrecision)
	return math.Round(v*shift) / shift
}
