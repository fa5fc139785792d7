package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tonearmlabs/tonearm/pkg/tensor"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx so ledger and index writes
// can run standalone or inside a store-level transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Ledger is the durable item_id -> embedding cache, one table per embedding
// provider so several providers can share a store file.
type Ledger struct {
	db     *sql.DB
	table  string
	dim    int
	logger *slog.Logger
}

// newLedger wires a ledger over an open database. The provider name has
// been validated against the registry, so it is safe inside an identifier.
func newLedger(db *sql.DB, provider string, dim int, logger *slog.Logger) *Ledger {
	return &Ledger{
		db:     db,
		table:  "embedding_" + provider,
		dim:    dim,
		logger: logger,
	}
}

func (l *Ledger) init(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id INTEGER PRIMARY KEY,
			item_id INTEGER NOT NULL UNIQUE,
			embedding BLOB NOT NULL,
			created INTEGER NOT NULL
		)
	`, l.table))
	if err != nil {
		return fmt.Errorf("creating ledger table %s: %w", l.table, err)
	}
	return nil
}

// Get returns the item's embedding, or ErrNotFound.
func (l *Ledger) Get(ctx context.Context, itemID int64) (*tensor.Embedding, error) {
	return l.get(ctx, l.db, itemID)
}

func (l *Ledger) get(ctx context.Context, q dbtx, itemID int64) (*tensor.Embedding, error) {
	var blob []byte
	err := q.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT embedding FROM %s WHERE item_id = ?`, l.table),
		itemID,
	).Scan(&blob)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("%w: %d", ErrNotFound, itemID)
	case err != nil:
		return nil, fmt.Errorf("reading embedding for item %d: %w", itemID, err)
	}

	emb, err := tensor.Unmarshal(blob, l.dim)
	if err != nil {
		return nil, fmt.Errorf("decoding embedding for item %d: %w", itemID, err)
	}
	return emb, nil
}

// GetMany returns embeddings for the given items, same order as the input,
// with nil entries preserving the positions of absent items.
func (l *Ledger) GetMany(ctx context.Context, itemIDs []int64) ([]*tensor.Embedding, error) {
	out := make([]*tensor.Embedding, len(itemIDs))
	for i, id := range itemIDs {
		emb, err := l.Get(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		out[i] = emb
	}
	return out, nil
}

// put upserts the item's embedding row, replacing any prior row.
func (l *Ledger) put(ctx context.Context, q dbtx, itemID int64, emb *tensor.Embedding, created time.Time) error {
	if emb.Dim() != l.dim {
		return fmt.Errorf("%w: embedding has dim %d, ledger expects %d",
			ErrDimensionMismatch, emb.Dim(), l.dim)
	}

	_, err := q.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (item_id, embedding, created)
		VALUES (?, ?, ?)
		ON CONFLICT(item_id) DO UPDATE SET
			embedding = excluded.embedding,
			created = excluded.created
	`, l.table), itemID, emb.Marshal(), created.Unix())
	if err != nil {
		return fmt.Errorf("storing embedding for item %d: %w", itemID, err)
	}

	l.logger.Debug("ledger row written",
		"item_id", itemID,
		"segments", emb.Segments(),
	)
	return nil
}

// Count returns the number of ledger rows.
func (l *Ledger) Count(ctx context.Context) (int64, error) {
	var n int64
	err := l.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM %s`, l.table),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting ledger rows: %w", err)
	}
	return n, nil
}
