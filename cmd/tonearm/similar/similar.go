// Package similarcmder provides the similar command for perceptual
// similarity queries.
package similarcmder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/tonearmlabs/tonearm/pkg/config"
	"github.com/tonearmlabs/tonearm/pkg/embeddings"
	"github.com/tonearmlabs/tonearm/pkg/logger"
	"github.com/tonearmlabs/tonearm/pkg/similar"
	"github.com/tonearmlabs/tonearm/pkg/store"
)

var (
	rankStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	itemStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	scoreStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type similarCommander struct {
	seedIDs []int64
	count   int
	quiet   bool

	directory string
	debug     bool
	logger    *slog.Logger
}

const similarLongDesc string = `Find items that sound similar to one or more seed items.

Seeds are item ids already ingested into the store. With a single seed, the
query runs against that item's averaged embedding; with several seeds, their
segment vectors are pooled first so each seed contributes equally regardless
of track length.

Results include the seeds themselves when they rank; filter them out in the
caller if self-matches are unwanted.

Use --quiet to output only item ids, one per line, for piping.

Example:
  tonearm similar 17
  tonearm similar 17 23 42 --count 20
  tonearm similar 17 --quiet | xargs -n1 my-playlist-add`

const similarShortDesc string = "Find perceptually similar items"

// NewSimilarCmd builds the similar command.
func NewSimilarCmd() *cobra.Command {
	cmder := &similarCommander{}

	cmd := &cobra.Command{
		Use:   "similar ID [ID...]",
		Short: similarShortDesc,
		Long:  similarLongDesc,
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

			cmder.seedIDs = make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := strconv.ParseInt(arg, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid item id %q: %w", arg, err)
				}
				cmder.seedIDs = append(cmder.seedIDs, id)
			}
			return cmder.run(cmd.Context())
		},
	}

	cmd.Flags().IntVarP(&cmder.count, "count", "k", 10, "Number of results to return")
	cmd.Flags().BoolVarP(&cmder.quiet, "quiet", "q", false, "Output only item ids, one per line (for piping)")

	return cmd
}

func (c *similarCommander) run(ctx context.Context) error {
	cfg, err := config.Load(c.directory)
	if err != nil {
		return err
	}

	debug := c.debug || cfg.Log.Debug
	c.logger = logger.New(logger.WithPretty(!cfg.Log.JSON), logger.WithJSON(cfg.Log.JSON), logger.WithDebug(debug))

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
		Logger: c.logger,
	})
	if err != nil {
		return err
	}
	if err := st.Open(ctx); err != nil {
		return err
	}
	defer st.Close()

	results, err := similar.ToManyScored(ctx, st, c.seedIDs, c.count)
	if err != nil {
		if errors.Is(err, similar.ErrNoSeedItems) {
			if !c.quiet {
				fmt.Println(dimStyle.Render("No seed items found in the store. Ingest them first with `tonearm ingest`."))
			}
			return nil
		}
		return err
	}

	if len(results) == 0 {
		if !c.quiet {
			fmt.Println(dimStyle.Render("No results found."))
		}
		return nil
	}

	if c.quiet {
		for _, result := range results {
			fmt.Println(result.ItemID)
		}
		return nil
	}

	fmt.Printf("\n%s %s\n\n",
		headerStyle.Render("Similar to:"),
		itemStyle.Render(fmt.Sprint(c.seedIDs)),
	)
	for i, result := range results {
		fmt.Printf("%s %s %s\n",
			rankStyle.Render(fmt.Sprintf("%2d.", i+1)),
			itemStyle.Render(fmt.Sprintf("item %d", result.ItemID)),
			scoreStyle.Render(fmt.Sprintf("(distance %.4f)", result.Distance)),
		)
	}
	fmt.Println()

	return nil
}
