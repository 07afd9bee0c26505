package service

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	"lotteryplus/internal/config"
	"lotteryplus/internal/models"
	"lotteryplus/internal/store"

	"github.com/sirupsen/logrus"
)

var (
	ErrInvalidQuantity      = errors.New("quantity must be between 1 and the purchase limit")
	ErrInsufficientCapacity = errors.New("not enough tickets available")
	ErrInvoiceNotFound      = errors.New("invoice not found or already confirmed")
	ErrNotReady             = errors.New("active ticket count has not reached capacity")
	ErrInsufficientPool     = errors.New("not enough active tickets for a draw")
	ErrAlreadyDrawn         = errors.New("the draw has already been held")
	ErrReserveFailed        = errors.New("reservation processing failed")
	ErrConfirmFailed        = errors.New("confirmation processing failed")
	ErrDrawFailed           = errors.New("draw processing failed")
)

type lotteryService struct {
	ledger Ledger
	cache  InvoiceCache
	config *config.Config
	logger *logrus.Logger

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewLotteryService wires the ledger, the optional cache and the business
// parameters. cache may be nil; every cache interaction is best-effort.
func NewLotteryService(logger *logrus.Logger, ledger Ledger, cache InvoiceCache, cfg *config.Config) LotteryService {
	return &lotteryService{
		ledger: ledger,
		cache:  cache,
		config: cfg,
		logger: logger,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Reserve assigns the next quantity consecutive ticket numbers to owner as
// inactive rows and records the pending payment. Validation happens before
// any write; the allocation itself is one ledger transaction.
func (s *lotteryService) Reserve(ctx context.Context, owner string, quantity int) (*Reservation, error) {
	if quantity < 1 || quantity > s.config.MaxPerPurchase {
		return nil, ErrInvalidQuantity
	}

	payment, tickets, err := s.ledger.ExecuteReserveTransaction(ctx, owner, quantity, s.config.TicketPrice, s.config.Capacity)
	if err != nil {
		if errors.Is(err, store.ErrDBInsufficientCapacity) {
			return nil, ErrInsufficientCapacity
		}
		s.logger.WithError(err).WithField("owner", owner).Error("reserve transaction failed")
		return nil, ErrReserveFailed
	}

	if s.cache != nil {
		if err := s.cache.StorePendingInvoice(ctx, payment, s.config.PendingInvoiceTTL); err != nil {
			s.logger.WithError(err).WithField("invoice_id", payment.InvoiceID).Warn("failed to cache pending invoice")
		}
	}

	s.logger.WithFields(logrus.Fields{
		"owner":      owner,
		"first":      tickets[0],
		"last":       tickets[len(tickets)-1],
		"invoice_id": payment.InvoiceID,
	}).Info("tickets reserved")

	return &Reservation{
		Tickets:    tickets,
		TotalPrice: payment.Amount,
		InvoiceID:  payment.InvoiceID,
	}, nil
}

// Confirm reconciles a payment-provider confirmation against the pending
// payment with the given invoice id and activates the owner's tickets.
// Confirming the same invoice twice reports ErrInvoiceNotFound; the first
// activation is untouched.
func (s *lotteryService) Confirm(ctx context.Context, invoiceID, txHash string, amount float64) (*models.Activation, error) {
	activation, err := s.ledger.ExecuteConfirmTransaction(ctx, invoiceID, txHash, s.config.TicketPrice)
	if err != nil {
		if errors.Is(err, store.ErrDBInvoiceNotFound) {
			return nil, ErrInvoiceNotFound
		}
		s.logger.WithError(err).WithField("invoice_id", invoiceID).Error("confirm transaction failed")
		return nil, ErrConfirmFailed
	}

	if s.cache != nil {
		if err := s.cache.DeletePendingInvoice(ctx, invoiceID); err != nil {
			s.logger.WithError(err).WithField("invoice_id", invoiceID).Warn("failed to drop pending invoice from cache")
		}
		// Activation changed the sold count, so the snapshot is stale.
		if err := s.cache.DeleteStatusSnapshot(ctx); err != nil {
			s.logger.WithError(err).Warn("failed to invalidate status snapshot")
		}
	}

	s.logger.WithFields(logrus.Fields{
		"owner":      activation.Owner,
		"invoice_id": invoiceID,
		"activated":  len(activation.Tickets),
	}).Info("payment confirmed")

	return activation, nil
}

// Draw samples the winners from the full active pool, assigns the configured
// prizes positionally and aggregates payouts per owner. It succeeds at most
// once, and only when the active count equals capacity.
func (s *lotteryService) Draw(ctx context.Context) (*DrawResult, error) {
	numWinners := len(s.config.Prizes)

	sample := func(pool []models.Ticket) ([]models.Ticket, error) {
		if len(pool) < numWinners {
			return nil, ErrInsufficientPool
		}
		s.rngMu.Lock()
		order := s.rng.Perm(len(pool))
		s.rngMu.Unlock()

		winners := make([]models.Ticket, numWinners)
		for i := 0; i < numWinners; i++ {
			winners[i] = pool[order[i]]
		}
		return winners, nil
	}

	draw, winners, err := s.ledger.ExecuteDrawTransaction(ctx, s.config.Capacity, s.config.Prizes, sample)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrDBNotReady):
			return nil, ErrNotReady
		case errors.Is(err, store.ErrDBAlreadyDrawn):
			return nil, ErrAlreadyDrawn
		case errors.Is(err, ErrInsufficientPool):
			return nil, ErrInsufficientPool
		}
		s.logger.WithError(err).Error("draw transaction failed")
		return nil, ErrDrawFailed
	}

	payouts := make(map[string]float64, numWinners)
	for i, w := range winners {
		payouts[w.Owner] = models.RoundAmount(payouts[w.Owner] + s.config.Prizes[i])
	}

	s.logger.WithFields(logrus.Fields{
		"draw_id": draw.ID,
		"winners": draw.Winners,
	}).Info("draw held")

	return &DrawResult{
		Winners: draw.Winners,
		Prizes:  draw.Prizes,
		Payouts: payouts,
		BotFee:  s.config.BotFee,
	}, nil
}

// Status reports sales progress. The snapshot is served from Redis when
// fresh; reads are best-effort and never block on the cache.
func (s *lotteryService) Status(ctx context.Context) (*Status, error) {
	if s.cache != nil {
		if snapshot, err := s.cache.GetStatusSnapshot(ctx); err != nil {
			s.logger.WithError(err).Warn("status snapshot read failed, falling back to ledger")
		} else if snapshot != nil {
			var status Status
			if jsonErr := json.Unmarshal(snapshot, &status); jsonErr == nil {
				return &status, nil
			} else {
				s.logger.WithError(jsonErr).Warn("discarding malformed status snapshot")
			}
		}
	}

	sold, err := s.ledger.CountActiveTickets(ctx)
	if err != nil {
		return nil, err
	}
	next, err := s.ledger.NextTicketNumber(ctx)
	if err != nil {
		return nil, err
	}

	status := &Status{SoldActive: sold, Capacity: s.config.Capacity, NextTicket: next}

	if s.cache != nil {
		if snapshot, err := json.Marshal(status); err == nil {
			if err := s.cache.StoreStatusSnapshot(ctx, snapshot, s.config.StatusCacheTTL); err != nil {
				s.logger.WithError(err).Warn("failed to cache status snapshot")
			}
		}
	}

	return status, nil
}

func (s *lotteryService) OwnerTickets(ctx context.Context, owner string) ([]models.Ticket, error) {
	return s.ledger.TicketsByOwner(ctx, owner)
}

func (s *lotteryService) TopBuyers(ctx context.Context, limit int) ([]models.BuyerStanding, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.ledger.TopBuyers(ctx, limit)
}

func (s *lotteryService) DrawHistory(ctx context.Context) ([]models.Draw, error) {
	return s.ledger.ListDraws(ctx)
}
