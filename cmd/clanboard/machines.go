package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/five82/clanboard/internal/model"
)

// --- machines ---

var machinesCmd = &cobra.Command{
	Use:   "machines",
	Short: "Inspect machines of a clan",
}

var machinesListCmd = &cobra.Command{
	Use:   "list [clan-id]",
	Short: "List machines with their status",
	Long:  "List the machines of a loaded clan. Without an id the active clan is used.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStack(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		entry, err := resolveClan(s.Clans.Snapshot(), args)
		if err != nil {
			return err
		}
		clan, ok := model.AsClan(entry)
		if !ok {
			return fmt.Errorf("clan %s is not loaded; activate it first", entry.ClanID())
		}

		if refresh, _ := cmd.Flags().GetBool("refresh"); refresh {
			ctx, cancel := context.WithTimeout(cmd.Context(), s.Config.RequestTimeout)
			defer cancel()
			machines := s.Clans.Clan(clan.ID).Machines()
			if err := machines.RefreshStatuses(ctx); err != nil {
				return fmt.Errorf("refresh statuses: %w", err)
			}
			if clan, err = s.Clans.Clan(clan.ID).Get(); err != nil {
				return err
			}
		}

		if len(clan.Machines.All) == 0 {
			fmt.Println("no machines")
			return nil
		}
		return writeMachineTable(os.Stdout, clan)
	},
}
