// Package ingestcmder provides the ingest command: embed audio files and
// index their vectors.
package ingestcmder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tonearmlabs/tonearm/pkg/config"
	"github.com/tonearmlabs/tonearm/pkg/embeddings"
	eventstreamutils "github.com/tonearmlabs/tonearm/pkg/eventstream/utils"
	"github.com/tonearmlabs/tonearm/pkg/logger"
	"github.com/tonearmlabs/tonearm/pkg/store"
)

// ingestLogFile is the JSON ingest log written into the store directory.
const ingestLogFile = "ingest.log"

type item struct {
	id   int64
	path string
}

type ingestCommander struct {
	directory string
	force     bool
	debug     bool
	items     []item

	logger *slog.Logger
}

const ingestLongDesc string = `Embed audio files and index their vectors.

Each argument pairs an externally-assigned item id with an audio file as
ID=PATH. Items already in the store are skipped unless --force is given;
--force replaces the stored embedding and re-indexes the item's vectors.

A failing item (unreadable audio, inference failure) is skipped with a
diagnostic and the rest of the batch continues.

Example:
  tonearm ingest 17=tracks/a.wav 18=tracks/b.wav
  tonearm ingest --force 17=tracks/a-remastered.wav`

const ingestShortDesc string = "Embed and index audio files"

// NewIngestCmd builds the ingest command.
func NewIngestCmd() *cobra.Command {
	cmder := &ingestCommander{}

	cmd := &cobra.Command{
		Use:   "ingest ID=PATH [ID=PATH...]",
		Short: ingestShortDesc,
		Long:  ingestLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cmder.directory, err = cmd.Flags().GetString("directory")
			if err != nil {
				return fmt.Errorf("could not get directory flag: %w", err)
			}
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			cmder.items, err = parseItems(args)
			if err != nil {
				return err
			}
			return cmder.run(cmd.Context())
		},
	}

	cmd.Flags().BoolVarP(&cmder.force, "force", "f", false, "Re-embed and re-index items already in the store")

	return cmd
}

func parseItems(args []string) ([]item, error) {
	items := make([]item, 0, len(args))
	for _, arg := range args {
		idPart, path, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("argument %q is not ID=PATH", arg)
		}
		id, err := strconv.ParseInt(idPart, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid item id in %q: %w", arg, err)
		}
		items = append(items, item{id: id, path: path})
	}
	return items, nil
}

func (c *ingestCommander) run(ctx context.Context) error {
	cfg, err := config.Load(c.directory)
	if err != nil {
		return err
	}

	// Pretty output for the terminal, JSON records into the store's
	// ingest log.
	if err := os.MkdirAll(c.directory, 0o755); err != nil {
		return fmt.Errorf("creating store directory: %w", err)
	}
	logFile, err := os.OpenFile(filepath.Join(c.directory, ingestLogFile),
		os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening ingest log: %w", err)
	}
	defer logFile.Close()

	debug := c.debug || cfg.Log.Debug
	c.logger = logger.Multi(
		logger.New(logger.WithPretty(true), logger.WithDebug(debug)),
		logger.New(logger.WithJSON(true), logger.WithDebug(debug), logger.WithWriter(logFile)),
	)

	publisher, err := eventstreamutils.NewPublisher(&eventstreamutils.NewPublisherOpts{
		ProviderType: cfg.Events.Provider,
		Brokers:      cfg.Events.Brokers,
		Topic:        cfg.Events.Topic,
		Logger:       c.logger,
	})
	if err != nil {
		return err
	}
	defer publisher.Close()

	st, err := store.New(store.Config{
		Directory: c.directory,
		Metric:    cfg.Store.Metric,
		Provider:  cfg.Store.Provider,
		Embedding: embeddings.Config{
			ModelPath:  cfg.Embedding.ModelPath,
			Device:     cfg.Embedding.Device,
			Target:     cfg.Embedding.Target,
			Dimensions: cfg.Embedding.Dimensions,
		},
		Publisher: publisher,
		Logger:    c.logger,
	})
	if err != nil {
		return err
	}
	if err := st.Open(ctx); err != nil {
		return err
	}
	defer st.Close()

	var ingested, failed int
	for _, it := range c.items {
		c.logger.Info("ingesting", "item_id", it.id, "path", it.path)
		if err := st.AddEmbedding(ctx, it.id, it.path, c.force); err != nil {
			// One bad file must not sink the batch.
			c.logger.Error("ingest failed",
				"item_id", it.id,
				"path", it.path,
				"error", err,
			)
			failed++
			continue
		}
		ingested++
	}

	c.logger.Info("ingest finished", "ingested", ingested, "failed", failed)
	if ingested == 0 && failed > 0 {
		return fmt.Errorf("all %d items failed to ingest", failed)
	}
	return nil
}
