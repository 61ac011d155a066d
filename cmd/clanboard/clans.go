package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/five82/clanboard/internal/model"
)

// --- clans ---

var clansCmd = &cobra.Command{
	Use:   "clans",
	Short: "Inspect the clan list",
}

var clansListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known clans",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStack(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		snap := s.Clans.Snapshot()
		if len(snap.All) == 0 {
			fmt.Println("no clans")
			return nil
		}
		return writeClanTable(os.Stdout, snap)
	},
}

var clansShowCmd = &cobra.Command{
	Use:   "show [clan-id]",
	Short: "Show a clan with its machines and service instances",
	Long:  "Show a clan. Without an id the active clan is shown. Clans that are not loaded show their metadata only.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("output")
		format = strings.ToLower(strings.TrimSpace(format))
		if format != "text" && format != "yaml" {
			return fmt.Errorf("unknown output format %q (want text or yaml)", format)
		}

		s, err := openStack(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		entry, err := resolveClan(s.Clans.Snapshot(), args)
		if err != nil {
			return err
		}
		if clan, ok := model.AsClan(entry); ok {
			ctx, cancel := context.WithTimeout(cmd.Context(), s.Config.RequestTimeout)
			defer cancel()
			if err := s.Clans.Clan(clan.ID).Machines().RefreshStatuses(ctx); err != nil {
				s.Logger.Warn("refresh statuses failed", zap.Error(err))
			} else if fresh, err := s.Clans.Clan(clan.ID).Get(); err == nil {
				entry = fresh
			}
		}

		summary := summarize(entry)
		if format == "yaml" {
			return writeYAML(os.Stdout, summary)
		}
		return writeText(os.Stdout, summary)
	},
}

// resolveClan returns the entry named by args, or the active clan.
func resolveClan(snap model.Clans, args []string) (model.ClanEntry, error) {
	if len(args) == 1 {
		id := strings.TrimSpace(args[0])
		entry, ok := snap.Get(id)
		if !ok {
			return nil, fmt.Errorf("clan %s is not in the clan list", id)
		}
		return entry, nil
	}
	active, ok := snap.ActiveClan()
	if !ok {
		return nil, fmt.Errorf("no active clan; pass a clan id")
	}
	return active, nil
}
