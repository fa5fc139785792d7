// Package tonearmcmder assembles the tonearm root command.
package tonearmcmder

import (
	"github.com/spf13/cobra"

	ingestcmder "github.com/tonearmlabs/tonearm/cmd/tonearm/ingest"
	initcmder "github.com/tonearmlabs/tonearm/cmd/tonearm/initcmd"
	similarcmder "github.com/tonearmlabs/tonearm/cmd/tonearm/similar"
	statscmder "github.com/tonearmlabs/tonearm/cmd/tonearm/stats"
)

const tonearmLongDesc string = `Tonearm indexes audio by perceptual similarity.

Audio files are embedded with a pretrained model, cached in a local store,
and indexed for nearest-neighbor search:

  tonearm init       Write a default config.toml into a store directory
  tonearm ingest     Embed and index audio files
  tonearm similar    Find items similar to one or more seed items
  tonearm stats      Show store contents`

const tonearmShortDesc string = "Tonearm - audio similarity indexing"

// NewTonearmCmd builds the root command with all subcommands attached.
func NewTonearmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tonearm",
		Short: tonearmShortDesc,
		Long:  tonearmLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().StringP("directory", "D", "tonearm", "Store directory")
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")

	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(ingestcmder.NewIngestCmd())
	cmd.AddCommand(similarcmder.NewSimilarCmd())
	cmd.AddCommand(statscmder.NewStatsCmd())

	return cmd
}
