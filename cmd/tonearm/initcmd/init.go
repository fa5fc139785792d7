// Package initcmder provides the init command: write a default config.toml
// into a store directory.
package initcmder

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/tonearmlabs/tonearm/pkg/config"
)

var (
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	pathStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
)

type initCommander struct {
	directory string
	force     bool

	metric     string
	provider   string
	modelPath  string
	device     string
	target     string
	dimensions int
	events     string
	brokers    []string
	topic      string
}

const initLongDesc string = `Write a config.toml into a store directory.

The config pins the scheme identity of the store (metric, embedding
provider) so later sessions reopen it consistently. Flags override the
defaults; an existing config.toml is never overwritten without --force.

Example:
  tonearm init
  tonearm init --metric l2 --model vggish.onnx
  tonearm init --provider remote --target http://gpu-box:8090 --dimensions 128`

const initShortDesc string = "Initialize a store directory"

// NewInitCmd builds the init command.
func NewInitCmd() *cobra.Command {
	cmder := &initCommander{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.directory, err = cmd.Flags().GetString("directory")
			if err != nil {
				return fmt.Errorf("could not get directory flag: %w", err)
			}
			return cmder.run()
		},
	}

	defaults := config.NewDefaultConfig()
	cmd.Flags().BoolVarP(&cmder.force, "force", "f", false, "Overwrite an existing config.toml")
	cmd.Flags().StringVar(&cmder.metric, "metric", defaults.Store.Metric, "Comparison metric (cosine or l2)")
	cmd.Flags().StringVar(&cmder.provider, "provider", defaults.Store.Provider, "Embedding provider (vggish or remote)")
	cmd.Flags().StringVar(&cmder.modelPath, "model", "", "ONNX model file for local inference")
	cmd.Flags().StringVar(&cmder.device, "device", defaults.Embedding.Device, "Inference device (cpu or cuda)")
	cmd.Flags().StringVar(&cmder.target, "target", "", "Remote provider base URL")
	cmd.Flags().IntVar(&cmder.dimensions, "dimensions", 0, "Vector length for the remote provider")
	cmd.Flags().StringVar(&cmder.events, "events", defaults.Events.Provider, "Ingest event publisher (none or kafka)")
	cmd.Flags().StringSliceVar(&cmder.brokers, "brokers", nil, "Kafka broker addresses")
	cmd.Flags().StringVar(&cmder.topic, "topic", defaults.Events.Topic, "Kafka topic for ingest events")

	return cmd
}

func (c *initCommander) run() error {
	path := config.Path(c.directory)
	if _, err := os.Stat(path); err == nil && !c.force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	cfg := config.NewDefaultConfig()
	cfg.Store.Metric = c.metric
	cfg.Store.Provider = c.provider
	cfg.Embedding.ModelPath = c.modelPath
	cfg.Embedding.Device = c.device
	cfg.Embedding.Target = c.target
	cfg.Embedding.Dimensions = c.dimensions
	cfg.Events.Provider = c.events
	cfg.Events.Brokers = c.brokers
	cfg.Events.Topic = c.topic

	if err := config.Save(c.directory, cfg); err != nil {
		return err
	}

	fmt.Printf("%s %s\n", okStyle.Render("Wrote"), pathStyle.Render(path))
	return nil
}
