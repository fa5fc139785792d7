package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tonearmlabs/tonearm/pkg/tensor"
)

// Index is one nearest-neighbor index for one (role, provider, metric)
// triple. Vectors live in a sqlite-vec vec0 virtual table whose rowids are
// the slot ids; a sibling mapping table resolves slots back to
// (item_id, segment). Both tables share the store database, so an add is
// one transaction and never leaves them disagreeing.
//
// Slot ids grow monotonically and are never reused: the next slot is
// max(assigned slot)+1, not the row count, and a replace reads that
// high-water mark before dropping the item's stale vectors, so the freed
// ids stay retired.
type Index struct {
	role     Role
	metric   Metric
	provider string
	dim      int

	db       *sql.DB
	vecTable string
	mapTable string
	logger   *slog.Logger
}

// Match is one query hit: a slot id and its distance in the index's metric.
// Distances sort ascending for both metrics (cosine distance under cosine,
// Euclidean distance under l2).
type Match struct {
	Slot     int64
	Distance float64
}

func newIndex(db *sql.DB, role Role, provider string, metric Metric, dim int, logger *slog.Logger) *Index {
	suffix := fmt.Sprintf("%s_%s_%s", role, provider, metric)
	return &Index{
		role:     role,
		metric:   metric,
		provider: provider,
		dim:      dim,
		db:       db,
		vecTable: "vec_" + suffix,
		mapTable: "vectors_" + suffix,
		logger:   logger.With("index", string(role)),
	}
}

func (x *Index) init(ctx context.Context) error {
	_, err := x.db.ExecContext(ctx, fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS %s USING vec0(embedding float[%d] distance_metric=%s)`,
		x.vecTable, x.dim, x.metric.vecDistanceMetric(),
	))
	if err != nil {
		return fmt.Errorf("creating vec0 table %s: %w", x.vecTable, err)
	}

	_, err = x.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id INTEGER PRIMARY KEY,
			vector_id INTEGER NOT NULL UNIQUE,
			item_id INTEGER NOT NULL,
			segment INTEGER NOT NULL
		)
	`, x.mapTable))
	if err != nil {
		return fmt.Errorf("creating mapping table %s: %w", x.mapTable, err)
	}

	_, err = x.db.ExecContext(ctx, fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS idx_item_%s ON %s (item_id)`,
		x.mapTable, x.mapTable,
	))
	if err != nil {
		return fmt.Errorf("indexing mapping table %s: %w", x.mapTable, err)
	}
	return nil
}

// Role returns the index's vectorization role.
func (x *Index) Role() Role {
	return x.role
}

// Dimensions returns the index's configured vector length.
func (x *Index) Dimensions() int {
	return x.dim
}

// Vectorize applies the role's pooling rule to an embedding and returns the
// query-ready vectors: one mean vector for the average role, one vector per
// segment for the segment role. Under the cosine metric every returned
// vector is L2-normalized. The input embedding is not mutated.
func (x *Index) Vectorize(emb *tensor.Embedding) ([][]float32, error) {
	if emb.Dim() != x.dim {
		return nil, fmt.Errorf("%w: embedding has dim %d, index %s expects %d",
			ErrDimensionMismatch, emb.Dim(), x.vecTable, x.dim)
	}

	var vectors [][]float32
	switch x.role {
	case RoleAverage:
		vectors = [][]float32{emb.MeanPool()}
	case RoleSegment:
		vectors = make([][]float32, emb.Segments())
		for s := range vectors {
			row := make([]float32, x.dim)
			copy(row, emb.Row(s))
			vectors[s] = row
		}
	default:
		return nil, fmt.Errorf("unknown index role %q", x.role)
	}

	if x.metric == MetricCosine {
		for _, v := range vectors {
			tensor.NormalizeL2(v)
		}
	}
	return vectors, nil
}

// add vectorizes the embedding and appends the vectors at fresh slot ids,
// recording one mapping row per vector with segments numbered 0..N-1. Runs
// inside the caller's transaction.
func (x *Index) add(ctx context.Context, tx dbtx, itemID int64, emb *tensor.Embedding) error {
	start, err := x.nextSlot(ctx, tx)
	if err != nil {
		return err
	}
	return x.addAt(ctx, tx, itemID, emb, start)
}

// replaceItem drops an item's stale vectors and appends the new ones. The
// high-water mark is read before the delete, so the freed slot ids are not
// handed out again even when the item held the highest slots.
func (x *Index) replaceItem(ctx context.Context, tx dbtx, itemID int64, emb *tensor.Embedding) error {
	start, err := x.nextSlot(ctx, tx)
	if err != nil {
		return err
	}
	if err := x.deleteItem(ctx, tx, itemID); err != nil {
		return err
	}
	return x.addAt(ctx, tx, itemID, emb, start)
}

func (x *Index) addAt(ctx context.Context, tx dbtx, itemID int64, emb *tensor.Embedding, start int64) error {
	vectors, err := x.Vectorize(emb)
	if err != nil {
		return err
	}

	for segment, vec := range vectors {
		slot := start + int64(segment)
		_, err := tx.ExecContext(ctx,
			fmt.Sprintf(`INSERT INTO %s (rowid, embedding) VALUES (?, ?)`, x.vecTable),
			slot, tensor.MarshalVector(vec),
		)
		if err != nil {
			return fmt.Errorf("inserting vector at slot %d: %w", slot, err)
		}

		_, err = tx.ExecContext(ctx,
			fmt.Sprintf(`INSERT INTO %s (vector_id, item_id, segment) VALUES (?, ?, ?)`, x.mapTable),
			slot, itemID, segment,
		)
		if err != nil {
			return fmt.Errorf("inserting slot mapping %d: %w", slot, err)
		}
	}

	x.logger.Debug("vectors indexed",
		"item_id", itemID,
		"first_slot", start,
		"count", len(vectors),
	)
	return nil
}

// deleteItem removes an item's vectors and mapping rows. Used by forced
// re-ingestion; freed slot ids are never handed out again.
func (x *Index) deleteItem(ctx context.Context, tx dbtx, itemID int64) error {
	_, err := tx.ExecContext(ctx, fmt.Sprintf(
		`DELETE FROM %s WHERE rowid IN (SELECT vector_id FROM %s WHERE item_id = ?)`,
		x.vecTable, x.mapTable,
	), itemID)
	if err != nil {
		return fmt.Errorf("deleting vectors for item %d: %w", itemID, err)
	}

	_, err = tx.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE item_id = ?`, x.mapTable),
		itemID,
	)
	if err != nil {
		return fmt.Errorf("deleting slot mappings for item %d: %w", itemID, err)
	}
	return nil
}

func (x *Index) nextSlot(ctx context.Context, q dbtx) (int64, error) {
	var next int64
	err := q.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT COALESCE(MAX(rowid) + 1, 0) FROM %s`, x.vecTable),
	).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("reading next slot for %s: %w", x.vecTable, err)
	}
	return next, nil
}

// Query returns the slots of the k nearest vectors, nearest first. k is
// clamped to the index size; an empty index yields an empty result, not an
// error. The query vector is normalized under the cosine metric before the
// search and is not mutated.
func (x *Index) Query(ctx context.Context, vector []float32, k int) ([]Match, error) {
	if len(vector) != x.dim {
		return nil, fmt.Errorf("%w: query vector has dim %d, index %s expects %d",
			ErrDimensionMismatch, len(vector), x.vecTable, x.dim)
	}
	if k <= 0 {
		return nil, nil
	}

	q := vector
	if x.metric == MetricCosine {
		q = make([]float32, len(vector))
		copy(q, vector)
		tensor.NormalizeL2(q)
	}

	rows, err := x.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT rowid, distance
		FROM %s
		WHERE embedding MATCH ? AND k = ?
		ORDER BY distance
	`, x.vecTable), tensor.MarshalVector(q), k)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", x.vecTable, err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.Slot, &m.Distance); err != nil {
			return nil, fmt.Errorf("scanning match: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating matches: %w", err)
	}

	if len(matches) == 0 {
		x.logger.Debug("index returned no matches", "table", x.vecTable)
	}
	return matches, nil
}

// Resolve maps slot ids back to item ids, preserving input order. A slot
// with no mapping row is skipped with a diagnostic rather than failing the
// whole lookup.
func (x *Index) Resolve(ctx context.Context, slots []int64) ([]int64, error) {
	itemIDs := make([]int64, 0, len(slots))
	for _, slot := range slots {
		var itemID int64
		err := x.db.QueryRowContext(ctx,
			fmt.Sprintf(`SELECT item_id FROM %s WHERE vector_id = ?`, x.mapTable),
			slot,
		).Scan(&itemID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			x.logger.Warn("no item for vector slot", "slot", slot)
			continue
		case err != nil:
			return nil, fmt.Errorf("resolving slot %d: %w", slot, err)
		}
		itemIDs = append(itemIDs, itemID)
	}
	return itemIDs, nil
}

// ItemSlots returns an item's slot ids in segment order.
func (x *Index) ItemSlots(ctx context.Context, itemID int64) ([]int64, error) {
	rows, err := x.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT vector_id FROM %s WHERE item_id = ? ORDER BY segment`, x.mapTable,
	), itemID)
	if err != nil {
		return nil, fmt.Errorf("reading slots for item %d: %w", itemID, err)
	}
	defer rows.Close()

	var slots []int64
	for rows.Next() {
		var slot int64
		if err := rows.Scan(&slot); err != nil {
			return nil, fmt.Errorf("scanning slot: %w", err)
		}
		slots = append(slots, slot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating slots: %w", err)
	}
	return slots, nil
}

// Count returns the number of vectors in the index.
func (x *Index) Count(ctx context.Context) (int64, error) {
	var n int64
	err := x.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM %s`, x.vecTable),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting vectors in %s: %w", x.vecTable, err)
	}
	return n, nil
}
