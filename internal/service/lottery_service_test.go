package service

import (
	"context"
	"io"
	"testing"

	"lotteryplus/internal/config"
	"lotteryplus/internal/store"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(capacity int) LotteryService {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg := &config.Config{
		TicketPrice:    0.5,
		Capacity:       capacity,
		MaxPerPurchase: 100,
		Prizes:         []float64{2500, 1500, 500},
		BotFee:         500,
	}
	return NewLotteryService(logger, store.NewMemoryStore(), nil, cfg)
}

func TestReserve_QuantityBounds(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(10)

	tests := []struct {
		name     string
		quantity int
		wantErr  error
	}{
		{name: "zero", quantity: 0, wantErr: ErrInvalidQuantity},
		{name: "negative", quantity: -1, wantErr: ErrInvalidQuantity},
		{name: "over purchase limit", quantity: 101, wantErr: ErrInvalidQuantity},
		{name: "over availability", quantity: 11, wantErr: ErrInsufficientCapacity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Reserve(ctx, "u1", tt.quantity)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	// Rejected reservations leave no trace: the cursor is still at 1.
	status, err := svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), status.NextTicket)
	assert.Equal(t, 0, status.SoldActive)
}

func TestReserveConfirmScenario(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(10)

	res, err := svc.Reserve(ctx, "u1", 3)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, res.Tickets)
	assert.Equal(t, 1.5, res.TotalPrice)
	assert.Equal(t, "u1-1-3", res.InvoiceID)

	activation, err := svc.Confirm(ctx, "u1-1-3", "0xabc", 1.5)
	require.NoError(t, err)
	assert.Equal(t, "u1", activation.Owner)
	assert.Equal(t, []int64{3, 2, 1}, activation.Tickets, "selection is ticket number descending")

	status, err := svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, status.SoldActive)

	// Confirming the same invoice again is a reported no-op.
	_, err = svc.Confirm(ctx, "u1-1-3", "0xabc", 1.5)
	assert.ErrorIs(t, err, ErrInvoiceNotFound)

	status, err = svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, status.SoldActive, "first activation unchanged by replay")

	res, err = svc.Reserve(ctx, "u1", 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 5}, res.Tickets)
}

func TestConfirm_PartialActivation(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(10)

	// amount = unitPrice * k activates min(k, inactive tickets for owner).
	res, err := svc.Reserve(ctx, "u1", 2)
	require.NoError(t, err)

	activation, err := svc.Confirm(ctx, res.InvoiceID, "0xabc", 2.5)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 1}, activation.Tickets)
}

func TestConfirm_UnknownInvoice(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(10)

	_, err := svc.Confirm(ctx, "nobody-1-1", "0xabc", 0.5)
	assert.ErrorIs(t, err, ErrInvoiceNotFound)
}

func activateTickets(t *testing.T, svc LotteryService, owners []string, each int) {
	t.Helper()
	ctx := context.Background()
	for _, owner := range owners {
		res, err := svc.Reserve(ctx, owner, each)
		require.NoError(t, err)
		_, err = svc.Confirm(ctx, res.InvoiceID, "0x"+owner, res.TotalPrice)
		require.NoError(t, err)
	}
}

func TestDraw_NotReadyBelowCapacity(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(10)

	_, err := svc.Draw(ctx)
	assert.ErrorIs(t, err, ErrNotReady)

	activateTickets(t, svc, []string{"u1"}, 5)
	_, err = svc.Draw(ctx)
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestDraw_InsufficientPool(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(2)

	activateTickets(t, svc, []string{"u1"}, 2)

	_, err := svc.Draw(ctx)
	assert.ErrorIs(t, err, ErrInsufficientPool)
}

func TestDraw_WinnersDistinctAndFromPool(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(10)

	activateTickets(t, svc, []string{"u1", "u2"}, 5)

	result, err := svc.Draw(ctx)
	require.NoError(t, err)
	require.Len(t, result.Winners, 3)

	seen := make(map[int64]bool)
	for _, w := range result.Winners {
		assert.GreaterOrEqual(t, w, int64(1))
		assert.LessOrEqual(t, w, int64(10))
		assert.False(t, seen[w], "winner %d repeated", w)
		seen[w] = true
	}

	assert.Equal(t, []float64{2500, 1500, 500}, result.Prizes)
	assert.Equal(t, 500.0, result.BotFee)

	var total float64
	for _, amount := range result.Payouts {
		total += amount
	}
	assert.Equal(t, 4500.0, total, "payouts account for every prize slot")

	// The draw is a one-time event.
	_, err = svc.Draw(ctx)
	assert.ErrorIs(t, err, ErrAlreadyDrawn)
}

func TestDraw_PayoutsAggregatePerOwner(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(3)

	// A single owner holds the whole pool, so all three prize slots land on
	// them and the payout is the sum of the prizes.
	activateTickets(t, svc, []string{"u1"}, 3)

	result, err := svc.Draw(ctx)
	require.NoError(t, err)
	require.Len(t, result.Payouts, 1)
	assert.Equal(t, 4500.0, result.Payouts["u1"])
}

func TestStatus_Progression(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(10)

	status, err := svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, &Status{SoldActive: 0, Capacity: 10, NextTicket: 1}, status)

	activateTickets(t, svc, []string{"u1"}, 4)

	status, err = svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, &Status{SoldActive: 4, Capacity: 10, NextTicket: 5}, status)
}

func TestTopBuyersDefaultLimit(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(10)

	activateTickets(t, svc, []string{"u1"}, 2)
	activateTickets(t, svc, []string{"u2"}, 3)

	standings, err := svc.TopBuyers(ctx, 0)
	require.NoError(t, err)
	require.Len(t, standings, 2)
	assert.Equal(t, "u2", standings[0].Owner)
}
