package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"lotteryplus/internal/models"

	"github.com/lib/pq"
)

var (
	ErrDBInsufficientCapacity = errors.New("database: not enough tickets available")
	ErrDBInvoiceNotFound      = errors.New("database: invoice not found or already confirmed")
	ErrDBNotReady             = errors.New("database: active ticket count has not reached capacity")
	ErrDBAlreadyDrawn         = errors.New("database: draw already held")
)

// SampleFunc picks the winning tickets from the active pool. It runs inside
// the draw transaction so the pool cannot change between sampling and persist.
type SampleFunc func(pool []models.Ticket) ([]models.Ticket, error)

type DBStore struct {
	DB *sql.DB
}

func NewDBStore(db *sql.DB) *DBStore {
	return &DBStore{DB: db}
}

func ConnectDB(driver, dataSourceName string) (*sql.DB, error) {
	db, err := sql.Open(driver, dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

func RunMigrations(db *sql.DB, migrationsDir string) error {
	if migrationsDir == "" {
		return fmt.Errorf("migrations directory not specified")
	}

	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var migrationFiles []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			migrationFiles = append(migrationFiles, entry.Name())
		}
	}
	sort.Strings(migrationFiles)

	for _, fileName := range migrationFiles {
		content, err := os.ReadFile(filepath.Join(migrationsDir, fileName))
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", fileName, err)
		}
		if _, err := db.Exec(string(content)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", fileName, err)
		}
	}
	return nil
}

func (s *DBStore) Close() error {
	if s.DB != nil {
		return s.DB.Close()
	}
	return nil
}

// ExecuteReserveTransaction assigns the next quantity ticket numbers to owner
// as inactive rows and records the pending payment, all in one transaction.
// The singleton cursor row is locked FOR UPDATE for the duration, so two
// concurrent reservations can never be assigned overlapping numbers.
//
// Availability is capacity minus the count of *active* tickets; pending
// reservations do not consume capacity.
func (s *DBStore) ExecuteReserveTransaction(ctx context.Context, owner string, quantity int, unitPrice float64, capacity int) (*models.Payment, []int64, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var nextTicket int64
	err = tx.QueryRowContext(ctx, `SELECT next_ticket FROM lottery_state WHERE id = 1 FOR UPDATE`).Scan(&nextTicket)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to lock ticket cursor: %w", err)
	}

	var activeCount int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM tickets WHERE active = TRUE`).Scan(&activeCount)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to count active tickets: %w", err)
	}
	if quantity > capacity-activeCount {
		return nil, nil, ErrDBInsufficientCapacity
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO users (owner) VALUES ($1) ON CONFLICT (owner) DO NOTHING`, owner); err != nil {
		return nil, nil, fmt.Errorf("failed to ensure user: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
        INSERT INTO tickets (ticket_number, owner, active, created_at)
        VALUES ($1, $2, FALSE, $3)`)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to prepare ticket insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	numbers := make([]int64, 0, quantity)
	for i := 0; i < quantity; i++ {
		n := nextTicket + int64(i)
		if _, err := stmt.ExecContext(ctx, n, owner, now); err != nil {
			return nil, nil, fmt.Errorf("failed to insert ticket %d: %w", n, err)
		}
		numbers = append(numbers, n)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE lottery_state SET next_ticket = $1 WHERE id = 1`, nextTicket+int64(quantity)); err != nil {
		return nil, nil, fmt.Errorf("failed to advance ticket cursor: %w", err)
	}

	total := models.RoundAmount(float64(quantity) * unitPrice)
	payment, err := models.NewPayment(owner, models.InvoiceID(owner, numbers[0], numbers[len(numbers)-1]), total)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build payment: %w", err)
	}

	err = tx.QueryRowContext(ctx, `
        INSERT INTO payments (owner, invoice_id, amount, tx_hash, confirmed, created_at)
        VALUES ($1, $2, $3, '', FALSE, $4)
        RETURNING id`,
		payment.Owner, payment.InvoiceID, payment.Amount, now,
	).Scan(&payment.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to record pending payment: %w", err)
	}
	payment.CreatedAt = now

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return payment, numbers, nil
}

// ExecuteConfirmTransaction marks the most recent unconfirmed payment for the
// invoice as confirmed and activates the owner's most recent inactive tickets,
// ticket number descending, up to round(amount/unitPrice). Selection is
// owner-scoped rather than invoice-scoped, and activating fewer tickets than
// paid for is not an error.
func (s *DBStore) ExecuteConfirmTransaction(ctx context.Context, invoiceID, txHash string, unitPrice float64) (*models.Activation, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Serializes against reserve and draw.
	if _, err := tx.ExecContext(ctx, `SELECT next_ticket FROM lottery_state WHERE id = 1 FOR UPDATE`); err != nil {
		return nil, fmt.Errorf("failed to lock ticket cursor: %w", err)
	}

	var (
		paymentID int64
		owner     string
		amount    float64
	)
	err = tx.QueryRowContext(ctx, `
        SELECT id, owner, amount
        FROM payments
        WHERE invoice_id = $1 AND confirmed = FALSE
        ORDER BY id DESC
        LIMIT 1
        FOR UPDATE`, invoiceID,
	).Scan(&paymentID, &owner, &amount)
	if err == sql.ErrNoRows {
		return nil, ErrDBInvoiceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find pending payment: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE payments SET confirmed = TRUE, tx_hash = $1 WHERE id = $2`, txHash, paymentID); err != nil {
		return nil, fmt.Errorf("failed to confirm payment: %w", err)
	}

	expected := int(math.Round(amount / unitPrice))
	rows, err := tx.QueryContext(ctx, `
        SELECT ticket_number
        FROM tickets
        WHERE owner = $1 AND active = FALSE
        ORDER BY ticket_number DESC
        LIMIT $2
        FOR UPDATE`, owner, expected)
	if err != nil {
		return nil, fmt.Errorf("failed to select inactive tickets: %w", err)
	}
	defer rows.Close()

	var activated []int64
	for rows.Next() {
		var n int64
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to scan ticket number: %w", err)
		}
		activated = append(activated, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating inactive tickets: %w", err)
	}

	if len(activated) > 0 {
		if _, err := tx.ExecContext(ctx, `UPDATE tickets SET active = TRUE WHERE ticket_number = ANY($1)`, pq.Array(activated)); err != nil {
			return nil, fmt.Errorf("failed to activate tickets: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &models.Activation{Owner: owner, Tickets: activated, Amount: amount}, nil
}

// ExecuteDrawTransaction verifies the draw preconditions, lets sample pick the
// winners from the active pool and persists the draw record, all under the
// cursor row lock. The drawn flag makes the draw a one-time event.
func (s *DBStore) ExecuteDrawTransaction(ctx context.Context, capacity int, prizes []float64, sample SampleFunc) (*models.Draw, []models.Ticket, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var drawn bool
	err = tx.QueryRowContext(ctx, `SELECT drawn FROM lottery_state WHERE id = 1 FOR UPDATE`).Scan(&drawn)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to lock ticket cursor: %w", err)
	}
	if drawn {
		return nil, nil, ErrDBAlreadyDrawn
	}

	var activeCount int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM tickets WHERE active = TRUE`).Scan(&activeCount)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to count active tickets: %w", err)
	}
	if activeCount != capacity {
		return nil, nil, ErrDBNotReady
	}

	rows, err := tx.QueryContext(ctx, `
        SELECT ticket_number, owner, active, created_at
        FROM tickets
        WHERE active = TRUE
        ORDER BY ticket_number`)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load active pool: %w", err)
	}
	defer rows.Close()

	var pool []models.Ticket
	for rows.Next() {
		var t models.Ticket
		if err := rows.Scan(&t.Number, &t.Owner, &t.Active, &t.CreatedAt); err != nil {
			return nil, nil, fmt.Errorf("failed to scan active ticket: %w", err)
		}
		pool = append(pool, t)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("error iterating active pool: %w", err)
	}

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
		return nil, nil, fmt.Errorf("failed to build draw record: %w", err)
	}

	err = tx.QueryRowContext(ctx, `
        INSERT INTO draws (drawn_at, winners, prizes)
        VALUES ($1, $2, $3)
        RETURNING id`,
		draw.DrawnAt, pq.Array(draw.Winners), pq.Array(draw.Prizes),
	).Scan(&draw.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to persist draw: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE lottery_state SET drawn = TRUE WHERE id = 1`); err != nil {
		return nil, nil, fmt.Errorf("failed to set drawn flag: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return draw, winners, nil
}

func (s *DBStore) CountActiveTickets(ctx context.Context) (int, error) {
	var count int
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM tickets WHERE active = TRUE`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active tickets: %w", err)
	}
	return count, nil
}

func (s *DBStore) NextTicketNumber(ctx context.Context) (int64, error) {
	var next int64
	err := s.DB.QueryRowContext(ctx, `SELECT next_ticket FROM lottery_state WHERE id = 1`).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("failed to read ticket cursor: %w", err)
	}
	return next, nil
}

func (s *DBStore) TicketsByOwner(ctx context.Context, owner string) ([]models.Ticket, error) {
	rows, err := s.DB.QueryContext(ctx, `
        SELECT ticket_number, owner, active, created_at
        FROM tickets
        WHERE owner = $1
        ORDER BY ticket_number`, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to query tickets by owner: %w", err)
	}
	defer rows.Close()

	var tickets []models.Ticket
	for rows.Next() {
		var t models.Ticket
		if err := rows.Scan(&t.Number, &t.Owner, &t.Active, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ticket: %w", err)
		}
		tickets = append(tickets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tickets: %w", err)
	}
	return tickets, nil
}

func (s *DBStore) TopBuyers(ctx context.Context, limit int) ([]models.BuyerStanding, error) {
	rows, err := s.DB.QueryContext(ctx, `
        SELECT owner, COUNT(ticket_number) AS cnt
        FROM tickets
        WHERE active = TRUE
        GROUP BY owner
        ORDER BY cnt DESC, owner
        LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top buyers: %w", err)
	}
	defer rows.Close()

	var standings []models.BuyerStanding
	for rows.Next() {
		var b models.BuyerStanding
		if err := rows.Scan(&b.Owner, &b.Tickets); err != nil {
			return nil, fmt.Errorf("failed to scan standing: %w", err)
		}
		standings = append(standings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating standings: %w", err)
	}
	return standings, nil
}

func (s *DBStore) ListDraws(ctx context.Context) ([]models.Draw, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT id, drawn_at, winners, prizes FROM draws ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query draws: %w", err)
	}
	defer rows.Close()

	var draws []models.Draw
	for rows.Next() {
		var d models.Draw
		if err := rows.Scan(&d.ID, &d.DrawnAt, pq.Array(&d.Winners), pq.Array(&d.Prizes)); err != nil {
			return nil, fmt.Errorf("failed to scan draw: %w", err)
		}
		draws = append(draws, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating draws: %w", err)
	}
	return draws, nil
}
