package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	// Register sqlite3 driver
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"cryptoPortfolioBot/internal/finance"
)

var (
	ErrHoldingNotFound      = errors.New("holding not found")
	ErrInsufficientQuantity = errors.New("insufficient quantity")
	ErrInvalidAmount        = errors.New("quantity and price must be positive")
	ErrTransactionNotFound  = errors.New("transaction not found")
	ErrAmbiguousID          = errors.New("transaction id prefix matches several trades")
	ErrAlreadyWatching      = errors.New("coin already on watchlist")
	ErrNotWatching          = errors.New("coin not on watchlist")
)

// MinIDPrefix is the shortest transaction id prefix DeleteTransaction accepts.
const MinIDPrefix = 8

type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
	Close() error
}

// Side is the direction of a recorded trade.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// Transaction is one recorded trade. Realized is zero for buys.
type Transaction struct {
	ID       string          `json:"id"`
	UserID   string          `json:"user_id"`
	AssetID  string          `json:"asset_id"`
	Side     Side            `json:"side"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Realized decimal.Decimal `json:"realized"`
	At       time.Time       `json:"at"`
}

// Store keeps holdings and trades per user. Amounts are stored as decimal
// strings so average prices do not drift across many trades.
type Store struct {
	db  DB
	now func() time.Time
}

func OpenSQLite(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	// sqlite serialises writers anyway
	db.SetMaxOpenConns(1)
	return db, nil
}

func InitSchema(db DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS holdings(
			user_id TEXT NOT NULL,
			asset_id TEXT NOT NULL,
			quantity TEXT NOT NULL,
			avg_price TEXT NOT NULL,
			currency TEXT NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY(user_id, asset_id)
		)`,
		`CREATE TABLE IF NOT EXISTS transactions(
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			asset_id TEXT NOT NULL,
			side TEXT NOT NULL,
			quantity TEXT NOT NULL,
			price TEXT NOT NULL,
			realized TEXT NOT NULL,
			ts INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_user_ts ON transactions(user_id, ts)`,
		`CREATE TABLE IF NOT EXISTS settings(
			user_id TEXT PRIMARY KEY,
			currency TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS watchlist(
			user_id TEXT NOT NULL,
			asset_id TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			PRIMARY KEY(user_id, asset_id)
		)`,
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(context.Background(), s); err != nil {
			return err
		}
	}
	return nil
}

func NewStore(db DB) *Store { return &Store{db: db, now: time.Now} }

// Buy adds quantity to a holding and recomputes its average acquisition price.
func (s *Store) Buy(ctx context.Context, userID, assetID string, qty, price decimal.Decimal, currency string) (Transaction, error) {
	if !qty.IsPositive() || !price.IsPositive() {
		return Transaction{}, ErrInvalidAmount
	}
	assetID = normalizeAsset(assetID)
	currency = strings.ToLower(currency)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Transaction{}, err
	}
	defer tx.Rollback()

	held, avg, found, err := loadHolding(ctx, tx, userID, assetID)
	if err != nil {
		return Transaction{}, err
	}
	newQty := held.Add(qty)
	newAvg := price
	if found {
		newAvg = held.Mul(avg).Add(qty.Mul(price)).Div(newQty)
	}

	now := s.now()
	_, err = tx.ExecContext(ctx, `INSERT INTO holdings(user_id,asset_id,quantity,avg_price,currency,updated_at)
		VALUES(?,?,?,?,?,?)
		ON CONFLICT(user_id,asset_id) DO UPDATE SET quantity=excluded.quantity, avg_price=excluded.avg_price, updated_at=excluded.updated_at`,
		userID, assetID, newQty.String(), newAvg.String(), currency, now.UnixMilli())
	if err != nil {
		return Transaction{}, fmt.Errorf("upsert holding: %w", err)
	}

	t := Transaction{
		ID: uuid.NewString(), UserID: userID, AssetID: assetID, Side: Buy,
		Quantity: qty, Price: price, Realized: decimal.Zero, At: now,
	}
	if err := insertTransaction(ctx, tx, t); err != nil {
		return Transaction{}, err
	}
	return t, tx.Commit()
}

// Sell removes quantity from a holding and records the realised profit
// qty*(price-avg). Selling the full quantity deletes the holding.
func (s *Store) Sell(ctx context.Context, userID, assetID string, qty, price decimal.Decimal) (Transaction, error) {
	if !qty.IsPositive() || !price.IsPositive() {
		return Transaction{}, ErrInvalidAmount
	}
	assetID = normalizeAsset(assetID)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Transaction{}, err
	}
	defer tx.Rollback()

	held, avg, found, err := loadHolding(ctx, tx, userID, assetID)
	if err != nil {
		return Transaction{}, err
	}
	if !found {
		return Transaction{}, fmt.Errorf("%s: %w", assetID, ErrHoldingNotFound)
	}
	if qty.GreaterThan(held) {
		return Transaction{}, fmt.Errorf("%s: have %s, selling %s: %w", assetID, held, qty, ErrInsufficientQuantity)
	}

	now := s.now()
	remaining := held.Sub(qty)
	if remaining.IsZero() {
		_, err = tx.ExecContext(ctx, `DELETE FROM holdings WHERE user_id=? AND asset_id=?`, userID, assetID)
	} else {
		_, err = tx.ExecContext(ctx, `UPDATE holdings SET quantity=?, updated_at=? WHERE user_id=? AND asset_id=?`,
			remaining.String(), now.UnixMilli(), userID, assetID)
	}
	if err != nil {
		return Transaction{}, fmt.Errorf("update holding: %w", err)
	}

	t := Transaction{
		ID: uuid.NewString(), UserID: userID, AssetID: assetID, Side: Sell,
		Quantity: qty, Price: price, Realized: qty.Mul(price.Sub(avg)), At: now,
	}
	if err := insertTransaction(ctx, tx, t); err != nil {
		return Transaction{}, err
	}
	return t, tx.Commit()
}

// Positions lists the user's holdings ordered by asset id.
func (s *Store) Positions(ctx context.Context, userID string) ([]finance.Position, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT asset_id, quantity, avg_price, currency FROM holdings WHERE user_id=? ORDER BY asset_id ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []finance.Position
	for rows.Next() {
		var (
			p        finance.Position
			qty, avg decimal.Decimal
		)
		if err := rows.Scan(&p.AssetID, &qty, &avg, &p.AcquisitionCurrency); err != nil {
			return nil, err
		}
		p.Quantity = qty.InexactFloat64()
		p.AverageAcquisitionPrice = avg.InexactFloat64()
		out = append(out, p)
	}
	return out, rows.Err()
}

// RealizedTotal sums realised profit over all the user's sells.
func (s *Store) RealizedTotal(ctx context.Context, userID string) (float64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT realized FROM transactions WHERE user_id=? AND side=?`, userID, Sell)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	total := decimal.Zero
	for rows.Next() {
		var r decimal.Decimal
		if err := rows.Scan(&r); err != nil {
			return 0, err
		}
		total = total.Add(r)
	}
	return total.InexactFloat64(), rows.Err()
}

// Transactions returns the newest trades first. limit <= 0 means all.
func (s *Store) Transactions(ctx context.Context, userID string, limit int) ([]Transaction, error) {
	q := `SELECT id, user_id, asset_id, side, quantity, price, realized, ts FROM transactions
		WHERE user_id=? ORDER BY ts DESC, rowid DESC`
	args := []any{userID}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return scanTransactions(rows)
}

func scanTransactions(rows *sql.Rows) ([]Transaction, error) {
	defer rows.Close()
	var out []Transaction
	for rows.Next() {
		var (
			t  Transaction
			ts int64
		)
		if err := rows.Scan(&t.ID, &t.UserID, &t.AssetID, &t.Side, &t.Quantity, &t.Price, &t.Realized, &ts); err != nil {
			return nil, err
		}
		t.At = time.UnixMilli(ts)
		out = append(out, t)
	}
	return out, rows.Err()
}

// DeleteTransaction removes one trade from the history. id may be a unique
// prefix of at least MinIDPrefix characters. Holdings are left as they are;
// only the realized total changes when a sell is removed.
func (s *Store) DeleteTransaction(ctx context.Context, userID, id string) (Transaction, error) {
	id = strings.ToLower(strings.TrimSpace(id))
	if len(id) < MinIDPrefix || strings.ContainsAny(id, "%_") {
		return Transaction{}, fmt.Errorf("%q: %w", id, ErrTransactionNotFound)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Transaction{}, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT id, user_id, asset_id, side, quantity, price, realized, ts FROM transactions
		WHERE user_id=? AND id LIKE ? LIMIT 2`, userID, id+"%")
	if err != nil {
		return Transaction{}, err
	}
	found, err := scanTransactions(rows)
	if err != nil {
		return Transaction{}, err
	}
	switch len(found) {
	case 0:
		return Transaction{}, fmt.Errorf("%s: %w", id, ErrTransactionNotFound)
	case 1:
	default:
		return Transaction{}, fmt.Errorf("%s: %w", id, ErrAmbiguousID)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE id=?`, found[0].ID); err != nil {
		return Transaction{}, fmt.Errorf("delete transaction: %w", err)
	}
	return found[0], tx.Commit()
}

// Watch adds a coin to the user's watchlist.
func (s *Store) Watch(ctx context.Context, userID, assetID string) error {
	assetID = normalizeAsset(assetID)
	res, err := s.db.ExecContext(ctx, `INSERT INTO watchlist(user_id,asset_id,created_at) VALUES(?,?,?)
		ON CONFLICT(user_id,asset_id) DO NOTHING`, userID, assetID, s.now().UnixMilli())
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s: %w", assetID, ErrAlreadyWatching)
	}
	return nil
}

func (s *Store) Unwatch(ctx context.Context, userID, assetID string) error {
	assetID = normalizeAsset(assetID)
	res, err := s.db.ExecContext(ctx, `DELETE FROM watchlist WHERE user_id=? AND asset_id=?`, userID, assetID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s: %w", assetID, ErrNotWatching)
	}
	return nil
}

// Watchlist returns the watched coin ids in the order they were added.
func (s *Store) Watchlist(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT asset_id FROM watchlist WHERE user_id=? ORDER BY created_at ASC, asset_id ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// Users lists every user holding at least one asset.
func (s *Store) Users(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT user_id FROM holdings ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// Currency returns the user's display currency, or "" when none was set.
func (s *Store) Currency(ctx context.Context, userID string) (string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT currency FROM settings WHERE user_id=?`, userID)
	if err != nil {
		return "", err
	}
	defer rows.Close()
	var cur string
	if rows.Next() {
		if err := rows.Scan(&cur); err != nil {
			return "", err
		}
	}
	return cur, rows.Err()
}

func (s *Store) SetCurrency(ctx context.Context, userID, currency string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO settings(user_id,currency) VALUES(?,?)
		ON CONFLICT(user_id) DO UPDATE SET currency=excluded.currency`, userID, strings.ToLower(strings.TrimSpace(currency)))
	return err
}

// Reset deletes every holding and trade of the user. The watchlist is kept.
func (s *Store) Reset(ctx context.Context, userID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM holdings WHERE user_id=?`, userID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE user_id=?`, userID); err != nil {
		return err
	}
	return tx.Commit()
}

func loadHolding(ctx context.Context, tx *sql.Tx, userID, assetID string) (qty, avg decimal.Decimal, found bool, err error) {
	err = tx.QueryRowContext(ctx, `SELECT quantity, avg_price FROM holdings WHERE user_id=? AND asset_id=?`,
		userID, assetID).Scan(&qty, &avg)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, decimal.Zero, false, fmt.Errorf("load holding: %w", err)
	}
	return qty, avg, true, nil
}

func insertTransaction(ctx context.Context, tx *sql.Tx, t Transaction) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO transactions(id,user_id,asset_id,side,quantity,price,realized,ts)
		VALUES(?,?,?,?,?,?,?,?)`,
		t.ID, t.UserID, t.AssetID, string(t.Side), t.Quantity.String(), t.Price.String(), t.Realized.String(), t.At.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func normalizeAsset(id string) string { return strings.ToLower(strings.TrimSpace(id)) }
