package cmd

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/stateful/mdedit/internal/config"
	"github.com/stateful/mdedit/internal/log"
)

var (
	fChdir      string
	fConfig     string
	fLogEnabled bool
	fLogVerbose bool
	fLogPath    string
	fHTTPDump   bool
)

// cfg is loaded before any command runs.
var cfg *config.Config

func Root() *cobra.Command {
	cmd := cobra.Command{
		Use:           "mdedit",
		Short:         "Edit Markdown files as rich documents",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if fChdir != "" && fChdir != "." {
				if err := os.Chdir(fChdir); err != nil {
					return errors.Wrapf(err, "failed to change directory to %q", fChdir)
				}
			}

			var err error
			cfg, err = loadConfig()
			if err != nil {
				return err
			}
			applyFlags(cmd.Flags(), cfg)

			logger, err := log.New(cfg.Log.Enabled, cfg.Log.Verbose, cfg.Log.Path)
			if err != nil {
				return err
			}
			log.Set(logger)
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			log.Flush()
		},
	}

	pflags := cmd.PersistentFlags()

	pflags.StringVar(&fChdir, "chdir", ".", "Switch to a different working directory before executing the command")
	pflags.StringVar(&fConfig, "config", "", "Path to a configuration file. By default mdedit.yaml files are searched from the working directory")
	pflags.BoolVar(&fLogEnabled, "log", false, "Enable logging")
	pflags.BoolVar(&fLogVerbose, "log-verbose", false, "Log debug messages in a human readable format")
	pflags.StringVar(&fLogPath, "log-path", "", "Write logs to a file instead of stderr")

	cmd.AddCommand(renderCmd())
	cmd.AddCommand(fmtCmd())
	cmd.AddCommand(serveCmd())
	cmd.AddCommand(attachCmd())
	cmd.AddCommand(remoteCmd())

	return &cmd
}

func loadConfig() (*config.Config, error) {
	if fConfig != "" {
		data, err := os.ReadFile(fConfig)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read config %q", fConfig)
		}
		return config.ParseYAML(data)
	}

	loader := config.NewLoader("mdedit", "yaml", os.DirFS("."), config.WithLogger(log.Get()))
	return loader.Load(".")
}

// applyFlags lets flags set on the command line win over the file.
func applyFlags(flags *pflag.FlagSet, c *config.Config) {
	if flags.Changed("log") {
		c.Log.Enabled = fLogEnabled
	}
	if flags.Changed("log-verbose") {
		c.Log.Verbose = fLogVerbose
		if fLogVerbose {
			c.Log.Enabled = true
		}
	}
	if flags.Changed("log-path") {
		c.Log.Path = fLogPath
		c.Log.Enabled = true
	}
}
