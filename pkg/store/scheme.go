package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/tonearmlabs/tonearm/pkg/tensor"
)

// Scheme owns the fixed set of role indices for one (provider, metric)
// pair: "average" holds one mean vector per item, "segment" holds the
// individual segment vectors. Ingestion fans out to every role inside one
// transaction, so either both indices record the item or neither does.
type Scheme struct {
	provider string
	metric   Metric

	db      *sql.DB
	average *Index
	segment *Index
}

func newScheme(db *sql.DB, provider string, metric Metric, dim int, logger *slog.Logger) *Scheme {
	return &Scheme{
		provider: provider,
		metric:   metric,
		db:       db,
		average:  newIndex(db, RoleAverage, provider, metric, dim, logger),
		segment:  newIndex(db, RoleSegment, provider, metric, dim, logger),
	}
}

func (s *Scheme) init(ctx context.Context) error {
	for _, x := range s.Indices() {
		if err := x.init(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Average returns the mean-vector index.
func (s *Scheme) Average() *Index {
	return s.average
}

// Segment returns the per-segment index.
func (s *Scheme) Segment() *Index {
	return s.segment
}

// Indices returns the scheme's role indices.
func (s *Scheme) Indices() []*Index {
	return []*Index{s.average, s.segment}
}

// Metric returns the distance metric shared by the scheme's indices.
func (s *Scheme) Metric() Metric {
	return s.metric
}

// Provider returns the embedding provider name the scheme is bound to.
func (s *Scheme) Provider() string {
	return s.provider
}

// AddEmbedding indexes an embedding in every role index inside its own
// transaction.
func (s *Scheme) AddEmbedding(ctx context.Context, itemID int64, emb *tensor.Embedding) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.addTx(ctx, tx, itemID, emb, false); err != nil {
		return err
	}
	return tx.Commit()
}

// addTx runs the fan-out inside the caller's transaction. When replace is
// set, each index first drops the item's stale vectors; the new ones land
// at fresh slot ids.
func (s *Scheme) addTx(ctx context.Context, tx dbtx, itemID int64, emb *tensor.Embedding, replace bool) error {
	for _, x := range s.Indices() {
		if replace {
			if err := x.replaceItem(ctx, tx, itemID, emb); err != nil {
				return err
			}
			continue
		}
		if err := x.add(ctx, tx, itemID, emb); err != nil {
			return err
		}
	}
	return nil
}
