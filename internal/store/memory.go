package store

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"lotteryplus/internal/models"
)

// MemoryStore is an in-process ledger with the same contract as DBStore. It
// backs local runs without Postgres (LOTTERY_DB_DRIVER=memory) and the test
// suite. A single mutex plays the role of the cursor row lock: every mutating
// operation is one critical section, so the atomicity guarantees match.
type MemoryStore struct {
	mu         sync.Mutex
	tickets    map[int64]*models.Ticket
	payments   []*models.Payment
	draws      []models.Draw
	nextTicket int64
	drawn      bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tickets:    make(map[int64]*models.Ticket),
		nextTicket: 1,
	}
}

func (s *MemoryStore) countActiveLocked() int {
	count := 0
	for _, t := range s.tickets {
		if t.Active {
			count++
		}
	}
	return count
}

func (s *MemoryStore) ExecuteReserveTransaction(ctx context.Context, owner string, quantity int, unitPrice float64, capacity int) (*models.Payment, []int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if quantity > capacity-s.countActiveLocked() {
		return nil, nil, ErrDBInsufficientCapacity
	}

	now := time.Now()
	numbers := make([]int64, 0, quantity)
	created := make([]*models.Ticket, 0, quantity)
	for i := 0; i < quantity; i++ {
		n := s.nextTicket + int64(i)
		ticket, err := models.NewTicket(n, owner)
		if err != nil {
			return nil, nil, err
		}
		ticket.CreatedAt = now
		created = append(created, ticket)
		numbers = append(numbers, n)
	}

	total := models.RoundAmount(float64(quantity) * unitPrice)
	payment, err := models.NewPayment(owner, models.InvoiceID(owner, numbers[0], numbers[len(numbers)-1]), total)
	if err != nil {
		return nil, nil, err
	}
	payment.ID = int64(len(s.payments) + 1)
	payment.CreatedAt = now

	// No writes happen before this point, so a rejected reservation leaves
	// the ledger untouched.
	for _, t := range created {
		s.tickets[t.Number] = t
	}
	s.nextTicket += int64(quantity)
	s.payments = append(s.payments, payment)

	return payment, numbers, nil
}

func (s *MemoryStore) ExecuteConfirmTransaction(ctx context.Context, invoiceID, txHash string, unitPrice float64) (*models.Activation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var payment *models.Payment
	for i := len(s.payments) - 1; i >= 0; i-- {
		if s.payments[i].InvoiceID == invoiceID && !s.payments[i].Confirmed {
			payment = s.payments[i]
			break
		}
	}
	if payment == nil {
		return nil, ErrDBInvoiceNotFound
	}

	payment.Confirmed = true
	payment.TxHash = txHash

	expected := int(math.Round(payment.Amount / unitPrice))

	var inactive []int64
	for n, t := range s.tickets {
		if t.Owner == payment.Owner && !t.Active {
			inactive = append(inactive, n)
		}
	}
	sort.Slice(inactive, func(i, j int) bool { return inactive[i] > inactive[j] })
	if len(inactive) > expected {
		inactive = inactive[:expected]
	}
	for _, n := range inactive {
		s.tickets[n].Active = true
	}

	return &models.Activation{Owner: payment.Owner, Tickets: inactive, Amount: payment.Amount}, nil
}

func (s *MemoryStore) ExecuteDrawTransaction(ctx context.Context, capacity int, prizes []float64, sample SampleFunc) (*models.Draw, []models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.drawn {
		return nil, nil, ErrDBAlreadyDrawn
	}
	if s.countActiveLocked() != capacity {
		return nil, nil, ErrDBNotReady
	}

	var pool []models.Ticket
	for _, t := range s.tickets {
		if t.Active {
			pool = append(pool, *t)
		}
	}
	sort.Slice(pool, func(i, j int) bool { return pool[i].Number < pool[j].Number })

	winners, err := sample(pool)
	if err != nil {
		return nil, nil, err
	}

	numbers := make([]int64, len(winners))
	for i, w := range winners {
		numbers[i] = w.Number
	}
	draw, err := models.NewDraw(numbers, prizes)
	if err != nil {
		return nil, nil, err
	}
	draw.ID = int64(len(s.draws) + 1)

	s.draws = append(s.draws, *draw)
	s.drawn = true

	return draw, winners, nil
}

func (s *MemoryStore) CountActiveTickets(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countActiveLocked(), nil
}

func (s *MemoryStore) NextTicketNumber(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextTicket, nil
}

func (s *MemoryStore) TicketsByOwner(ctx context.Context, owner string) ([]models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var tickets []models.Ticket
	for _, t := range s.tickets {
		if t.Owner == owner {
			tickets = append(tickets, *t)
		}
	}
	sort.Slice(tickets, func(i, j int) bool { return tickets[i].Number < tickets[j].Number })
	return tickets, nil
}

func (s *MemoryStore) TopBuyers(ctx context.Context, limit int) ([]models.BuyerStanding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[string]int64)
	for _, t := range s.tickets {
		if t.Active {
			counts[t.Owner]++
		}
	}

	standings := make([]models.BuyerStanding, 0, len(counts))
	for owner, n := range counts {
		standings = append(standings, models.BuyerStanding{Owner: owner, Tickets: n})
	}
	sort.Slice(standings, func(i, j int) bool {
		if standings[i].Tickets != standings[j].Tickets {
			return standings[i].Tickets > standings[j].Tickets
		}
		return standings[i].Owner < standings[j].Owner
	})
	if len(standings) > limit {
		standings = standings[:limit]
	}
	return standings, nil
}

func (s *MemoryStore) ListDraws(ctx context.Context) ([]models.Draw, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	draws := make([]models.Draw, len(s.draws))
	copy(draws, s.draws)
	return draws, nil
}
