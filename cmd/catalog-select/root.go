package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/catalog-select/internal/config"
	"github.com/Sternrassler/catalog-select/pkg/logging"
)

// rootOptions holds the persistent flags and the configuration they load.
type rootOptions struct {
	configPath string
	logLevel   string
	pretty     bool

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "catalog-select",
		Short: "Browse a paginated catalog and select its first N records",
		Long: `catalog-select pages through a remote catalog listing (by default the
Art Institute of Chicago artworks API) and selects an arbitrary number of
leading records across page boundaries.

Configuration is read from built-in defaults, then an optional YAML file,
then the environment (CATALOG_BASE_URL, CATALOG_PAGE_SIZE,
CATALOG_USER_AGENT, REDIS_URL, PORT, LOG_LEVEL). A .env file in the working
directory is loaded first when present.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// .env is optional
			_ = godotenv.Load()

			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			if opts.logLevel != "" {
				cfg.Logging.Level = opts.logLevel
			}
			if opts.pretty {
				cfg.Logging.Pretty = true
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			opts.cfg = cfg

			logging.Setup(cfg.LoggerConfig(os.Stderr))
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to a YAML config file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().BoolVar(&opts.pretty, "pretty", false, "Human-readable console logs")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newTUICmd(opts))
	cmd.AddCommand(newSelectCmd(opts))

	return cmd
}
