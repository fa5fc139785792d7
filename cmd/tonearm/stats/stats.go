// Package statscmder provides the stats command.
package statscmder

import (
	"context"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/tonearmlabs/tonearm/pkg/config"
	"github.com/tonearmlabs/tonearm/pkg/embeddings"
	"github.com/tonearmlabs/tonearm/pkg/logger"
	"github.com/tonearmlabs/tonearm/pkg/store"
)

var (
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
)

type statsCommander struct {
	directory string
	debug     bool
}

const statsLongDesc string = `Show store contents.

Reports the number of ingested items and the vector count per index role.
The embedding model is never loaded, so this is cheap to run against any
store directory.

Example:
  tonearm stats
  tonearm stats -D /srv/tonearm`

const statsShortDesc string = "Show store contents"

// NewStatsCmd builds the stats command.
func NewStatsCmd() *cobra.Command {
	cmder := &statsCommander{}

	cmd := &cobra.Command{
		Use:   "stats",
		Short: statsShortDesc,
		Long:  statsLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.directory, err = cmd.Flags().GetString("directory")
			if err != nil {
				return fmt.Errorf("could not get directory flag: %w", err)
			}
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			return cmder.run(cmd.Context())
		},
	}

	return cmd
}

func (c *statsCommander) run(ctx context.Context) error {
	cfg, err := config.Load(c.directory)
	if err != nil {
		return err
	}

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
		Logger: logger.New(logger.WithPretty(true), logger.WithDebug(c.debug || cfg.Log.Debug)),
	})
	if err != nil {
		return err
	}
	if err := st.Open(ctx); err != nil {
		return err
	}
	defer st.Close()

	stats, err := st.Stats(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("%s %s\n", labelStyle.Render("directory:"), valueStyle.Render(st.Directory()))
	fmt.Printf("%s %s\n", labelStyle.Render("provider: "), valueStyle.Render(st.Provider()))
	fmt.Printf("%s %s\n", labelStyle.Render("metric:   "), valueStyle.Render(string(st.Metric())))
	fmt.Printf("%s %s\n", labelStyle.Render("items:    "), valueStyle.Render(fmt.Sprint(stats.Items)))
	for _, role := range []store.Role{store.RoleAverage, store.RoleSegment} {
		fmt.Printf("%s %s\n",
			labelStyle.Render(fmt.Sprintf("%s vectors:", role)),
			valueStyle.Render(fmt.Sprint(stats.Vectors[role])),
		)
	}

	return nil
}
