package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ersonp/menu-core/internal/domain/entities"
)

func newLedgerCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect manual overrides",
	}

	cmd.AddCommand(newLedgerListCmd(flags), newLedgerSuggestCmd(flags))

	return cmd
}

func newLedgerListCmd(flags *globalFlags) *cobra.Command {
	var (
		item  int64
		limit int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List overrides, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := entities.LedgerFilter{Limit: limit}
			if cmd.Flags().Changed("item") {
				filter.MenuItemID = &item
			}

			return withDeps(cmd.Context(), flags, func(d *Deps) error {
				list, err := d.Ledger.List(cmd.Context(), filter)
				if err != nil {
					return err
				}
				return emit(cmd, flags, list, func(w io.Writer) {
					if len(list) == 0 {
						fmt.Fprintln(w, "No overrides recorded.")
						return
					}
					tw := newTable(w)
					fmt.Fprintln(tw, "WHEN\tITEM\tKEY\tFROM\tTO\tACTOR")
					for i := range list {
						e := &list[i]
						fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\n",
							e.CreatedAt.Format("2006-01-02 15:04:05"), e.MenuItemID, e.NormalizedName,
							ref(e.PreviousRef), ref(e.NewRef), e.Actor)
					}
					tw.Flush()
				})
			})
		},
	}

	cmd.Flags().Int64Var(&item, "item", 0, "Only overrides of this menu item")
	cmd.Flags().IntVarP(&limit, "limit", "l", 0, "Maximum number of entries (0 for all)")

	return cmd
}

func newLedgerSuggestCmd(flags *globalFlags) *cobra.Command {
	var minOccurrences int

	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Suggest aliases from repeated, agreeing overrides",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd.Context(), flags, func(d *Deps) error {
				list, err := d.Ledger.SuggestAliases(cmd.Context(), minOccurrences)
				if err != nil {
					return err
				}
				return emit(cmd, flags, list, func(w io.Writer) {
					if len(list) == 0 {
						fmt.Fprintln(w, "No alias suggestions.")
						return
					}
					tw := newTable(w)
					fmt.Fprintln(tw, "ALIAS\tSTANDARD MENU\tOVERRIDES\tACTORS")
					for i := range list {
						s := &list[i]
						fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", s.Alias, s.StandardMenuID, s.Occurrences, strings.Join(s.Actors, ","))
					}
					tw.Flush()
				})
			})
		},
	}

	cmd.Flags().IntVar(&minOccurrences, "min", 0, "Minimum agreeing overrides (default: ledger.promote_threshold)")

	return cmd
}
