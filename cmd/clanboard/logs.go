package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/five82/clanboard/internal/config"
	"github.com/five82/clanboard/internal/logging"
	"github.com/five82/clanboard/internal/logtail"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show the end of the clanboard log",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		lines, _ := cmd.Flags().GetInt("lines")
		level, _ := cmd.Flags().GetString("level")

		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		minLevel, err := logging.ParseLevel(level)
		if err != nil {
			return err
		}

		entries, err := logtail.Tail(cfg.LogFile, lines, minLevel)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Printf("no log entries in %s\n", cfg.LogFile)
			return nil
		}
		for _, e := range entries {
			fmt.Println(logtail.Format(e))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(logsCmd)
	logsCmd.Flags().IntP("lines", "n", 50, "number of log lines to scan")
	logsCmd.Flags().String("level", "debug", "minimum level to show")
}
