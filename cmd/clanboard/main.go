package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/five82/clanboard/internal/app"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "clanboard: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "clanboard",
	Short:         "Terminal dashboard for clan machines and services",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(clansCmd)
	rootCmd.AddCommand(machinesCmd)

	clansCmd.AddCommand(clansListCmd)
	clansCmd.AddCommand(clansShowCmd)

	machinesCmd.AddCommand(machinesListCmd)

	// Flags
	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default ~/.config/clanboard/config.toml)")
	pf.Bool("demo", false, "serve an in-memory example clan instead of dialing the host")
	pf.String("nats", "", "NATS server URL (overrides config)")
	pf.String("storage", "", "storage backend: badger, file or memory (overrides config)")
	pf.String("log-level", "", "log level (overrides config)")

	rootCmd.Flags().String("theme", "", "color theme (Nightfox, Kanagawa, Slate)")
	tuiCmd.Flags().String("theme", "", "color theme (Nightfox, Kanagawa, Slate)")

	clansShowCmd.Flags().StringP("output", "o", "text", "output format: text or yaml")
	machinesListCmd.Flags().Bool("refresh", true, "fetch live machine statuses first")
}

// optionsFrom collects the persistent flags into app options.
func optionsFrom(cmd *cobra.Command) app.Options {
	flags := cmd.Flags()
	configPath, _ := flags.GetString("config")
	demo, _ := flags.GetBool("demo")
	natsURL, _ := flags.GetString("nats")
	storage, _ := flags.GetString("storage")
	logLevel, _ := flags.GetString("log-level")
	theme, _ := flags.GetString("theme")
	return app.Options{
		ConfigPath: configPath,
		Demo:       demo,
		NATSURL:    natsURL,
		Storage:    storage,
		LogLevel:   logLevel,
		Theme:      theme,
	}
}

// openStack wires the services for a one-shot command.
func openStack(cmd *cobra.Command) (*app.Stack, error) {
	opts := optionsFrom(cmd)
	opts.LogToStderr = true
	return app.Open(cmd.Context(), opts)
}

func runTUI(cmd *cobra.Command, _ []string) error {
	return app.Run(cmd.Context(), optionsFrom(cmd))
}

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Start the interactive dashboard (default)",
	Args:  cobra.NoArgs,
	RunE:  runTUI,
}
