package service

import (
	"context"
	"time"

	"lotteryplus/internal/models"
	"lotteryplus/internal/store"
)

// Ledger is the durable ticket/payment/draw store. Both the Postgres and the
// in-memory implementations satisfy it; every Execute* method is one atomic
// unit.
type Ledger interface {
	ExecuteReserveTransaction(ctx context.Context, owner string, quantity int, unitPrice float64, capacity int) (*models.Payment, []int64, error)
	ExecuteConfirmTransaction(ctx context.Context, invoiceID, txHash string, unitPrice float64) (*models.Activation, error)
	ExecuteDrawTransaction(ctx context.Context, capacity int, prizes []float64, sample store.SampleFunc) (*models.Draw, []models.Ticket, error)
	CountActiveTickets(ctx context.Context) (int, error)
	NextTicketNumber(ctx context.Context) (int64, error)
	TicketsByOwner(ctx context.Context, owner string) ([]models.Ticket, error)
	TopBuyers(ctx context.Context, limit int) ([]models.BuyerStanding, error)
	ListDraws(ctx context.Context) ([]models.Draw, error)
}

// InvoiceCache is the best-effort Redis layer. The service works without it.
type InvoiceCache interface {
	StorePendingInvoice(ctx context.Context, payment *models.Payment, ttl time.Duration) error
	DeletePendingInvoice(ctx context.Context, invoiceID string) error
	StoreStatusSnapshot(ctx context.Context, snapshot []byte, ttl time.Duration) error
	GetStatusSnapshot(ctx context.Context) ([]byte, error)
	DeleteStatusSnapshot(ctx context.Context) error
}

// LotteryService is the operation surface exposed to the bot command layer
// and the webhook transport.
type LotteryService interface {
	Reserve(ctx context.Context, owner string, quantity int) (*Reservation, error)
	Confirm(ctx context.Context, invoiceID, txHash string, amount float64) (*models.Activation, error)
	Draw(ctx context.Context) (*DrawResult, error)
	Status(ctx context.Context) (*Status, error)
	OwnerTickets(ctx context.Context, owner string) ([]models.Ticket, error)
	TopBuyers(ctx context.Context, limit int) ([]models.BuyerStanding, error)
	DrawHistory(ctx context.Context) ([]models.Draw, error)
}

// Reservation is the result of a successful ticket reservation.
type Reservation struct {
	Tickets    []int64 `json:"tickets"`
	TotalPrice float64 `json:"total_price"`
	InvoiceID  string  `json:"invoice_id"`
}

// DrawResult carries the winners in sampling order and the payouts summed
// per owner across the prize slots they won.
type DrawResult struct {
	Winners []int64            `json:"winners"`
	Prizes  []float64          `json:"prizes"`
	Payouts map[string]float64 `json:"payouts"`
	BotFee  float64            `json:"bot_fee"`
}

// Status is the read-only sales progress view.
type Status struct {
	SoldActive int   `json:"sold_active"`
	Capacity   int   `json:"capacity"`
	NextTicket int64 `json:"next_ticket"`
}
