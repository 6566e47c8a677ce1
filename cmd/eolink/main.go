// eolink - Endless Online protocol workbench.
//
// eolink encodes and decodes EO wire data, keeps captured packet streams
// in a local database with their sequence checks, exposes the codec over a
// REST API and reports desyncs via MQTT.
package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/eolink-project/eolink/internal/capture"
	"github.com/eolink-project/eolink/internal/cli"
	"github.com/eolink-project/eolink/internal/config"
	"github.com/eolink-project/eolink/internal/events"
	"github.com/eolink-project/eolink/internal/inspect"
	"github.com/eolink-project/eolink/internal/util"
)

const banner = `
            _ _       _    
   ___  ___| (_)_ __ | | __
  / _ \/ _ \ | | '_ \| |/ /
 |  __/ (_) | | | | | |   < 
  \___|\___/|_|_|_| |_|_|\_\  v%s
 Endless Online protocol workbench
`

func main() {
	var configDir string

	rootCmd := &cobra.Command{
		Use:   "eolink",
		Short: "Endless Online protocol workbench",
		Long: `eolink encodes and decodes Endless Online wire data.

Run without a subcommand it starts the workbench: the REST inspector,
MQTT telemetry, the background scheduler and the interactive console.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configDir, "config-dir", "c", config.DefaultConfigDir, "configuration directory")

	var noConsole bool
	rootCmd.Flags().BoolVar(&noConsole, "no-console", false, "do not read commands from stdin")
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runWorkbench(configDir, noConsole)
	}

	rootCmd.AddCommand(
		execCmd(&configDir),
		setupCmd(&configDir),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}

// execCmd runs a single console command against the configured capture
// store and exits.
func execCmd(configDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "exec <command> [args...]",
		Short: "Run one console command and exit",
		Example: `  eolink exec num 42
  eolink exec decrypt 6 95 a1 92 e4
  eolink exec packets 3
  eolink exec -- str -d 69 36 5e 49`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(*configDir, false)
			if err != nil {
				return err
			}

			store, err := capture.NewStore(cfg.GetApplicationData().Capture.DatabasePath, 0)
			if err != nil {
				return err
			}
			defer store.Close()

			eventBus := events.NewEventBus()
			defer eventBus.Stop()

			bench := inspect.NewWorkbench(store, eventBus, inspect.Options{
				StrictSequence: cfg.GetCodec().StrictSequence,
			})
			console := cli.NewCLI(cfg, eventBus, bench)
			console.SetIO(os.Stdin, cmd.OutOrStdout())
			return console.Execute(context.Background(), strings.Join(args, " "))
		},
	}
}

func setupCmd(configDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Run the interactive setup wizard",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(*configDir, false)
			if err != nil {
				return err
			}
			if err := config.RunSetupWizard(cfg, os.Stdin, cmd.OutOrStdout()); err != nil {
				return err
			}
			result := config.Validate(cfg)
			for _, w := range result.Warnings {
				fmt.Fprintf(cmd.OutOrStdout(), "warning: %s: %s\n", w.Field, w.Message)
			}
			if !result.IsValid() {
				return fmt.Errorf("configuration has %d error(s): %s", len(result.Errors), result.Errors[0].Error())
			}
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			if short {
				fmt.Fprintln(out, util.Version)
				return
			}
			fmt.Fprintf(out, banner, util.Version)
			fmt.Fprintln(out)
			fmt.Fprintf(out, "  Version:    %s\n", util.Version)
			fmt.Fprintf(out, "  Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "  OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
	cmd.Flags().BoolVarP(&short, "short", "s", false, "print only the version number")
	return cmd
}

// loadConfig loads the configuration and points the logger at its
// settings. console controls whether log lines also go to the terminal.
func loadConfig(configDir string, console bool) (*config.Config, bool, error) {
	defaults := util.DefaultLogConfig()
	defaults.Console = console
	if err := util.InitLogger(defaults); err != nil {
		return nil, false, fmt.Errorf("failed to initialize logger: %w", err)
	}

	cfg, firstRun, err := config.Load(configDir)
	if err != nil {
		return nil, false, err
	}

	logging := cfg.GetApplicationData().Logging
	logCfg := util.LogConfig{
		Level:      logging.Level,
		Directory:  logging.Directory,
		MaxBackups: logging.MaxBackups,
		Console:    console && logging.Console,
		JSON:       logging.JSONConsole,
	}
	if err := util.InitLogger(logCfg); err != nil {
		return nil, false, fmt.Errorf("failed to reconfigure logger: %w", err)
	}
	return cfg, firstRun, nil
}
