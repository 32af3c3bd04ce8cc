package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/me/flowgraph/internal/logging"
	"github.com/me/flowgraph/internal/toolbox"
	"github.com/me/flowgraph/pkg/model"
	"github.com/spf13/cobra"
)

var (
	flagServer    string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string
	flagOutput    string
	flagTools     string

	logger *slog.Logger
	client *Client
	tools  model.ToolLookup
)

// defaultServer returns the default server URL, checking FLOWGRAPH_SERVER first.
func defaultServer() string {
	if s := os.Getenv("FLOWGRAPH_SERVER"); s != "" {
		return s
	}
	return "http://localhost:8080"
}

// NewRootCmd creates the root cobra command for the flowgraph CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "flowgraph",
		Short: "Order, lay out, batch and extract workflow graphs",
		Long: "flowgraph works on workflow definitions and history snapshots stored as JSON or YAML files,\n" +
			"and talks to a flowgraph server to save and run workflows.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if flagDebug {
				flagLogLevel = "debug"
			}
			format, err := logging.ParseFormat(flagLogFormat)
			if err != nil {
				return err
			}
			if flagOutput != "text" && flagOutput != "json" {
				return fmt.Errorf("unknown output %q (want text or json)", flagOutput)
			}
			if _, set := os.LookupEnv("NO_COLOR"); set {
				color.NoColor = true
			}

			logger = logging.NewLoggerWithWriter(logging.ParseLevel(flagLogLevel), format, cmd.ErrOrStderr())
			client = NewClient(flagServer, logger)
			tools = nil
			if flagTools != "" {
				if tools, err = toolbox.Load(flagTools); err != nil {
					return err
				}
				logger.Debug("tools loaded", "path", flagTools)
			}
			return nil
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagServer, "server", defaultServer(), "flowgraph server URL (or FLOWGRAPH_SERVER env)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")
	root.PersistentFlags().StringVarP(&flagOutput, "output", "o", "text", "Output format (text, json)")
	root.PersistentFlags().StringVar(&flagTools, "tools", "", "Tool registry file; tool ids are not checked when unset")

	root.AddCommand(
		newOrderCmd(),
		newLayoutCmd(),
		newExpandCmd(),
		newJobsCmd(),
		newExtractCmd(),
		newSaveCmd(),
		newListCmd(),
		newRunCmd(),
		newDeleteCmd(),
	)

	return root
}
