package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTicket(t *testing.T) {
	tests := []struct {
		name    string
		number  int64
		owner   string
		wantErr bool
	}{
		{name: "valid ticket", number: 1, owner: "u1"},
		{name: "zero number", number: 0, owner: "u1", wantErr: true},
		{name: "negative number", number: -5, owner: "u1", wantErr: true},
		{name: "missing owner", number: 7, owner: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ticket, err := NewTicket(tt.number, tt.owner)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.number, ticket.Number)
			assert.Equal(t, tt.owner, ticket.Owner)
			assert.False(t, ticket.Active)
		})
	}
}

func TestNewPayment(t *testing.T) {
	payment, err := NewPayment("u1", "u1-1-3", 1.5)
	require.NoError(t, err)
	assert.False(t, payment.Confirmed)
	assert.Empty(t, payment.TxHash)

	_, err = NewPayment("", "u1-1-3", 1.5)
	assert.Error(t, err)
	_, err = NewPayment("u1", "", 1.5)
	assert.Error(t, err)
	_, err = NewPayment("u1", "u1-1-3", 0)
	assert.Error(t, err)
}

func TestNewDraw(t *testing.T) {
	tests := []struct {
		name    string
		winners []int64
		prizes  []float64
		wantErr bool
	}{
		{name: "valid draw", winners: []int64{7, 2, 9}, prizes: []float64{2500, 1500, 500}},
		{name: "duplicate winner", winners: []int64{7, 7, 9}, prizes: []float64{2500, 1500, 500}, wantErr: true},
		{name: "arity mismatch", winners: []int64{7, 2}, prizes: []float64{2500, 1500, 500}, wantErr: true},
		{name: "invalid ticket number", winners: []int64{0, 2, 9}, prizes: []float64{2500, 1500, 500}, wantErr: true},
		{name: "empty", winners: nil, prizes: nil, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			draw, err := NewDraw(tt.winners, tt.prizes)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.winners, draw.Winners)
			assert.Equal(t, tt.prizes, draw.Prizes)
		})
	}
}

func TestInvoiceID(t *testing.T) {
	assert.Equal(t, "u1-1-3", InvoiceID("u1", 1, 3))
	assert.Equal(t, "42-100-100", InvoiceID("42", 100, 100))
}

func TestRoundAmount(t *testing.T) {
	assert.Equal(t, 1.5, RoundAmount(3*0.5))
	assert.Equal(t, 0.333333, RoundAmount(1.0/3.0))
	assert.Equal(t, 50.0, RoundAmount(100*0.5))
}
