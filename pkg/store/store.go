// Package store persists audio embeddings and their similarity indices.
//
// A store is one directory holding a single sqlite database: a ledger table
// caching each item's raw embedding tensor, and a pair of sqlite-vec
// indices ("average" and "segment") per (provider, metric) scheme, with
// mapping tables resolving index slots back to item ids.
//
// Item ids are owned by the caller (the library manager); the store never
// generates them.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/tonearmlabs/tonearm/pkg/embeddings"
	"github.com/tonearmlabs/tonearm/pkg/eventstream"
	"github.com/tonearmlabs/tonearm/pkg/eventstream/nop"
	"github.com/tonearmlabs/tonearm/pkg/logger"
	"github.com/tonearmlabs/tonearm/pkg/tensor"
)

// DBFileName is the sqlite file inside a store directory.
const DBFileName = "store.sqlite"

// Config holds store construction settings.
type Config struct {
	// Directory is the store directory, created on Open if absent.
	Directory string

	// Metric is the comparison metric name ("cosine" or "l2").
	// Defaults to cosine.
	Metric string

	// Provider is the embedding provider name. Defaults to "vggish".
	Provider string

	// Embedding carries provider construction settings (model path,
	// device, remote target).
	Embedding embeddings.Config

	// Embedder, when set, is used instead of constructing the configured
	// provider. Its dimensionality wins over the provider's. Tests inject
	// fakes here.
	Embedder embeddings.Embedder

	// Publisher receives an event per ingested item. Defaults to the
	// no-op publisher.
	Publisher eventstream.Publisher

	// Logger receives store diagnostics. Defaults to logger.Nop().
	Logger *slog.Logger
}

// Store is the top-level handle for one store directory. Construction is
// two-phase: New validates configuration, Open touches the disk. The
// embedding model is heavier still and is loaded only when an ingestion
// actually needs to compute an embedding, so read paths stay cheap.
type Store struct {
	dir      string
	metric   Metric
	provider string
	dim      int

	embeddingCfg embeddings.Config
	publisher    eventstream.Publisher
	logger       *slog.Logger

	db       *sql.DB
	ledger   *Ledger
	scheme   *Scheme
	embedder embeddings.Embedder
}

// New validates the configuration and returns a configured, unopened
// store. Unknown metric or provider names fail here, not later.
func New(cfg Config) (*Store, error) {
	if cfg.Directory == "" {
		return nil, fmt.Errorf("store directory is required")
	}
	if cfg.Metric == "" {
		cfg.Metric = string(MetricCosine)
	}
	if cfg.Provider == "" {
		cfg.Provider = "vggish"
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	if cfg.Publisher == nil {
		cfg.Publisher = nop.NewPublisher()
	}

	metric, err := ParseMetric(cfg.Metric)
	if err != nil {
		return nil, err
	}

	cfg.Embedding.Logger = cfg.Logger

	var dim int
	if cfg.Embedder != nil {
		dim = cfg.Embedder.Dimensions()
	} else {
		var err error
		dim, err = embeddings.Dimensions(cfg.Provider, cfg.Embedding)
		if err != nil {
			return nil, err
		}
	}
	if dim <= 0 {
		return nil, fmt.Errorf("provider %s reports invalid dimensionality %d", cfg.Provider, dim)
	}

	return &Store{
		dir:          cfg.Directory,
		metric:       metric,
		provider:     cfg.Provider,
		dim:          dim,
		embeddingCfg: cfg.Embedding,
		publisher:    cfg.Publisher,
		logger:       cfg.Logger,
		embedder:     cfg.Embedder,
	}, nil
}

// Open creates the store directory if needed, opens the sqlite database
// with the sqlite-vec extension, and creates any missing tables. It does
// not load the embedding model.
func (s *Store) Open(ctx context.Context) error {
	if s.db != nil {
		return nil
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating store directory: %w", err)
	}

	// Registers the sqlite-vec extension on every new connection.
	sqlite_vec.Auto()

	db, err := sql.Open("sqlite3", filepath.Join(s.dir, DBFileName))
	if err != nil {
		return fmt.Errorf("opening store database: %w", err)
	}

	var vecVersion string
	if err := db.QueryRowContext(ctx, "SELECT vec_version()").Scan(&vecVersion); err != nil {
		db.Close()
		return fmt.Errorf("sqlite-vec not available: %w", err)
	}

	ledger := newLedger(db, s.provider, s.dim, s.logger)
	if err := ledger.init(ctx); err != nil {
		db.Close()
		return err
	}

	scheme := newScheme(db, s.provider, s.metric, s.dim, s.logger)
	if err := scheme.init(ctx); err != nil {
		db.Close()
		return err
	}

	s.db = db
	s.ledger = ledger
	s.scheme = scheme

	s.logger.Debug("store opened",
		"directory", s.dir,
		"provider", s.provider,
		"metric", string(s.metric),
		"dimensions", s.dim,
		"vec_version", vecVersion,
	)
	return nil
}

// Close releases the database and, if it was loaded, the embedding model.
func (s *Store) Close() error {
	var errs []error
	if s.embedder != nil {
		errs = append(errs, s.embedder.Close())
		s.embedder = nil
	}
	if s.db != nil {
		errs = append(errs, s.db.Close())
		s.db = nil
	}
	return errors.Join(errs...)
}

// ensureEmbedder builds the embedding provider on first use and keeps it
// for the store's lifetime.
func (s *Store) ensureEmbedder() (embeddings.Embedder, error) {
	if s.embedder != nil {
		return s.embedder, nil
	}
	embedder, err := embeddings.New(s.provider, s.embeddingCfg)
	if err != nil {
		return nil, err
	}
	s.embedder = embedder
	return embedder, nil
}

// AddEmbedding computes and stores the embedding for an audio file, then
// indexes its vectors. Repeated ingestion of an item already in the ledger
// is a no-op unless force is set; with force, the ledger row is replaced
// and the item's index vectors are dropped and re-appended at fresh slots.
func (s *Store) AddEmbedding(ctx context.Context, itemID int64, audioPath string, force bool) error {
	return s.addEmbedding(ctx, itemID, audioPath, force, func() (*tensor.Embedding, error) {
		embedder, err := s.ensureEmbedder()
		if err != nil {
			return nil, err
		}
		return embedder.Embed(ctx, audioPath)
	})
}

// AddEmbeddingTensor stores a precomputed embedding tensor instead of
// running the provider. Same idempotence and force semantics as
// AddEmbedding.
func (s *Store) AddEmbeddingTensor(ctx context.Context, itemID int64, emb *tensor.Embedding, force bool) error {
	return s.addEmbedding(ctx, itemID, "", force, func() (*tensor.Embedding, error) {
		return emb, nil
	})
}

func (s *Store) addEmbedding(ctx context.Context, itemID int64, source string, force bool, compute func() (*tensor.Embedding, error)) error {
	if s.db == nil {
		return ErrNotOpen
	}

	existing, err := s.ledger.Get(ctx, itemID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	if existing != nil && !force {
		s.logger.Debug("embedding already stored", "item_id", itemID)
		return nil
	}

	emb, err := compute()
	if err != nil {
		return fmt.Errorf("%w for item %d: %w", embeddings.ErrEmbedding, itemID, err)
	}
	if emb == nil {
		return fmt.Errorf("%w for item %d: provider returned nothing", embeddings.ErrEmbedding, itemID)
	}
	if emb.Dim() != s.dim {
		return fmt.Errorf("%w: provider %s produced dim %d, store expects %d",
			ErrDimensionMismatch, s.provider, emb.Dim(), s.dim)
	}

	// Ledger row and index vectors commit together; a crash leaves either
	// the whole item or none of it.
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning ingest transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.ledger.put(ctx, tx, itemID, emb, time.Now()); err != nil {
		return err
	}
	replace := force && existing != nil
	if err := s.scheme.addTx(ctx, tx, itemID, emb, replace); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing ingest transaction: %w", err)
	}

	s.publishIngested(ctx, itemID, source, emb.Segments(), replace)
	return nil
}

func (s *Store) publishIngested(ctx context.Context, itemID int64, source string, segments int, forced bool) {
	event := &eventstream.ItemIngestedEvent{
		SchemaVersion: eventstream.SchemaVersionV1,
		EventType:     eventstream.EventTypeItemIngested,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Provider:      s.provider,
		Metric:        string(s.metric),
		ItemID:        itemID,
		Source:        source,
		Segments:      segments,
		Forced:        forced,
	}
	if err := s.publisher.PublishItemIngested(ctx, event); err != nil {
		// The item is durable either way; event delivery is best-effort.
		s.logger.Warn("failed to publish ingest event",
			"item_id", itemID,
			"error", err,
		)
	}
}

// GetEmbedding returns the item's raw embedding, or ErrNotFound.
func (s *Store) GetEmbedding(ctx context.Context, itemID int64) (*tensor.Embedding, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}
	return s.ledger.Get(ctx, itemID)
}

// GetManyEmbeddings returns embeddings in input order, nil for absent items.
func (s *Store) GetManyEmbeddings(ctx context.Context, itemIDs []int64) ([]*tensor.Embedding, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}
	return s.ledger.GetMany(ctx, itemIDs)
}

// Scheme returns the store's vector index coordinator.
func (s *Store) Scheme() *Scheme {
	return s.scheme
}

// Ledger returns the store's embedding cache.
func (s *Store) Ledger() *Ledger {
	return s.ledger
}

// Directory returns the store directory path.
func (s *Store) Directory() string {
	return s.dir
}

// Provider returns the embedding provider name.
func (s *Store) Provider() string {
	return s.provider
}

// Metric returns the store's comparison metric.
func (s *Store) Metric() Metric {
	return s.metric
}

// Dimensions returns the provider's vector length.
func (s *Store) Dimensions() int {
	return s.dim
}

// Stats summarizes store contents without touching the embedding model.
type Stats struct {
	Items   int64
	Vectors map[Role]int64
}

// Stats reports ledger and per-index counts.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}

	items, err := s.ledger.Count(ctx)
	if err != nil {
		return nil, err
	}

	vectors := make(map[Role]int64, 2)
	for _, x := range s.scheme.Indices() {
		n, err := x.Count(ctx)
		if err != nil {
			return nil, err
		}
		vectors[x.Role()] = n
	}

	return &Stats{Items: items, Vectors: vectors}, nil
}
