// Command intake serves the profile intake wizard and runs it in a terminal.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/kindredhq/intake/internal/config"
	"github.com/kindredhq/intake/pkg/logging"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// envFiles are loaded before the environment is read.
var envFiles []string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "intake",
		Short: "Profile intake wizard",
		Long: `intake collects a matchmaking profile in three validated steps.

"serve" runs the live web page; "fill" asks the same questions in the
terminal. Settings come from INTAKE_* variables, optionally in a .env file.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringSliceVar(&envFiles, "env", []string{".env"}, "dotenv files to load")

	root.AddCommand(newServeCmd(), newFillCmd(), newListCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "intake %s\n", version)
			return err
		},
	}
}

func loadConfig() (*config.Config, error) {
	return config.Load(envFiles...)
}

func newLogger(cfg *config.Config, w io.Writer) logging.Logger {
	opts := []logging.LoggerOption{
		logging.WithLevel(logging.ParseLevel(cfg.LogLevel)),
		logging.WithOutput(w),
	}
	if cfg.LogJSON {
		opts = append(opts, logging.WithJSON())
	}
	return logging.NewSlogLogger(opts...)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
