package commands

import (
	"github.com/spf13/cobra"

	"github.com/admitline/admitline/pkg/cli"
)

var (
	cfgFile     string
	contextName string
	outputJSON  bool

	globalConfig *cli.Config
)

var rootCmd = &cobra.Command{
	Use:   "admitline",
	Short: "Voice admissions assistant for the Institute of Space Technology",
	Long: `admitline runs a voice-call admissions assistant: callers ask about
programs, fees, and admissions; answers are grounded in institutional
documents and spoken back with low-latency synthesized audio.

Configuration is stored in ~/.admitline/config.yaml and supports multiple
contexts, similar to kubectl's context management.

Examples:
  # Set up a context
  admitline config add-context prod --inference-key gsk_xxx --tts-key el_xxx --voice v1 --docs-dir ./docs

  # Run the server
  admitline -c prod serve

  # Inspect captured leads
  admitline -c prod leads --json
`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.admitline/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&contextName, "context", "c", "", "context name to use")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output as JSON (for piping)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(leadsCmd)
	rootCmd.AddCommand(configCmd)
}

func initConfig() {
	var err error
	globalConfig, err = cli.LoadConfig(cfgFile)
	if err != nil {
		cli.Errorf("failed to load config: %v", err)
	}
}

// currentContext resolves the context selected by flags.
func currentContext() (*cli.Context, error) {
	return globalConfig.ResolveContext(contextName)
}

// outputFormat maps the --json flag to a format.
func outputFormat() cli.OutputFormat {
	if outputJSON {
		return cli.FormatJSON
	}
	return cli.FormatYAML
}
