package main

import (
	"fmt"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/ersonp/menu-core/internal/domain/entities"
	"github.com/ersonp/menu-core/internal/domain/ports"
	"github.com/ersonp/menu-core/internal/domain/services"
)

const defaultItemListLimit = 50

func newItemCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "item",
		Aliases: []string{"items"},
		Short:   "Manage restaurant menu items and their matches",
	}

	cmd.AddCommand(
		newItemAddCmd(flags),
		newItemListCmd(flags),
		newItemShowCmd(flags),
		newItemRenameCmd(flags),
		newItemRemoveCmd(flags),
		newItemMatchCmd(flags),
		newItemOverrideCmd(flags),
		newItemClearCmd(flags),
		newItemHistoryCmd(flags),
		newItemRematchCmd(flags),
		newItemBatchCmd(flags),
	)

	return cmd
}

type itemAddFlags struct {
	restaurant  int64
	price       int64
	description string
}

func newItemAddCmd(flags *globalFlags) *cobra.Command {
	var f itemAddFlags

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a menu item and match it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := entities.MenuItemInput{Name: args[0], Description: f.description}
			if cmd.Flags().Changed("restaurant") {
				input.RestaurantID = &f.restaurant
			}
			if cmd.Flags().Changed("price") {
				input.Price = &f.price
			}

			return withDeps(cmd.Context(), flags, func(d *Deps) error {
				item, res, err := d.Menus.Create(cmd.Context(), input)
				if item == nil {
					return err
				}

				out := struct {
					Menu  *entities.MenuItem   `json:"menu"`
					Match entities.MatchResult `json:"match"`
				}{item, res}
				if printErr := emit(cmd, flags, out, func(w io.Writer) {
					fmt.Fprintf(w, "Added menu item #%d: %s\n", item.ID, item.OriginalName)
					if err == nil {
						printResult(w, &res)
					}
				}); printErr != nil {
					return printErr
				}
				if err != nil {
					return errors.Wrapf(err, "menu item #%d stored without a match", item.ID)
				}
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&f.restaurant, "restaurant", 0, "Owning restaurant id")
	cmd.Flags().Int64Var(&f.price, "price", 0, "Price in won")
	cmd.Flags().StringVar(&f.description, "description", "", "Free-text description")

	return cmd
}

type itemListFlags struct {
	restaurant int64
	method     string
	unverified bool
	limit      int
	offset     int
}

func newItemListCmd(flags *globalFlags) *cobra.Command {
	var f itemListFlags

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List menu items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := ports.MenuItemFilter{Unverified: f.unverified, Limit: f.limit, Offset: f.offset}
			if cmd.Flags().Changed("restaurant") {
				filter.RestaurantID = &f.restaurant
			}
			if f.method != "" {
				method := entities.MatchMethod(f.method)
				if !method.IsValid() {
					return entities.ValidationErrorf("invalid --method %q (valid: none, automatic, manual)", f.method)
				}
				filter.Method = &method
			}

			return withDeps(cmd.Context(), flags, func(d *Deps) error {
				list, err := d.Menus.List(cmd.Context(), filter)
				if err != nil {
					return err
				}
				return emit(cmd, flags, list, func(w io.Writer) { printItems(w, list) })
			})
		},
	}

	cmd.Flags().Int64Var(&f.restaurant, "restaurant", 0, "Only items of this restaurant")
	cmd.Flags().StringVar(&f.method, "method", "", "Only items matched this way (none, automatic, manual)")
	cmd.Flags().BoolVar(&f.unverified, "unverified", false, "Only automatic matches awaiting review")
	cmd.Flags().IntVarP(&f.limit, "limit", "l", defaultItemListLimit, "Maximum number of items")
	cmd.Flags().IntVar(&f.offset, "offset", 0, "Number of items to skip")

	return cmd
}

func newItemShowCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a menu item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withDeps(cmd.Context(), flags, func(d *Deps) error {
				item, err := d.Menus.Get(cmd.Context(), id)
				if err != nil {
					return err
				}
				return emit(cmd, flags, item, func(w io.Writer) { printItem(w, item) })
			})
		},
	}
}

func newItemRenameCmd(flags *globalFlags) *cobra.Command {
	var price int64
	var description string

	cmd := &cobra.Command{
		Use:   "rename <id> <name>",
		Short: "Change a menu item's raw name and re-match it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			update := entities.MenuItemUpdate{Name: &args[1]}
			if cmd.Flags().Changed("price") {
				update.Price = &price
			}
			if cmd.Flags().Changed("description") {
				update.Description = &description
			}

			return withDeps(cmd.Context(), flags, func(d *Deps) error {
				item, err := d.Menus.Update(cmd.Context(), id, update)
				if item == nil {
					return err
				}
				if printErr := emit(cmd, flags, item, func(w io.Writer) { printItem(w, item) }); printErr != nil {
					return printErr
				}
				return err
			})
		},
	}

	cmd.Flags().Int64Var(&price, "price", 0, "New price in won")
	cmd.Flags().StringVar(&description, "description", "", "New description")

	return cmd
}

func newItemRemoveCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Delete a menu item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withDeps(cmd.Context(), flags, func(d *Deps) error {
				if err := d.Menus.Delete(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed menu item #%d\n", id)
				return nil
			})
		},
	}
}

func newItemMatchCmd(flags *globalFlags) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "match <id>",
		Short: "Run automatic matching on a menu item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withDeps(cmd.Context(), flags, func(d *Deps) error {
				res, err := d.Matcher.AttemptAutomaticMatch(cmd.Context(), id, services.MatchOptions{Force: force})
				if err != nil {
					return err
				}
				return emit(cmd, flags, res, func(w io.Writer) { printResult(w, &res) })
			})
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Re-score verified automatic matches too")

	return cmd
}

func newItemOverrideCmd(flags *globalFlags) *cobra.Command {
	var actor string

	cmd := &cobra.Command{
		Use:   "override <id> <standard-menu-id>",
		Short: "Manually point a menu item at a standard menu",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			entryID, err := parseID(args[1])
			if err != nil {
				return err
			}
			return withDeps(cmd.Context(), flags, func(d *Deps) error {
				res, err := d.Matcher.ApplyManualMatch(cmd.Context(), id, entryID, actor)
				if err != nil {
					return err
				}
				return emit(cmd, flags, res, func(w io.Writer) { printResult(w, &res) })
			})
		},
	}

	cmd.Flags().StringVar(&actor, "actor", os.Getenv("USER"), "Who is making the change")

	return cmd
}

func newItemClearCmd(flags *globalFlags) *cobra.Command {
	var actor string

	cmd := &cobra.Command{
		Use:   "clear <id>",
		Short: "Remove a menu item's match",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withDeps(cmd.Context(), flags, func(d *Deps) error {
				res, err := d.Matcher.ClearMatch(cmd.Context(), id, actor)
				if err != nil {
					return err
				}
				return emit(cmd, flags, res, func(w io.Writer) {
					if res.Skipped {
						fmt.Fprintf(w, "Menu item #%d was already unmatched\n", id)
						return
					}
					fmt.Fprintf(w, "Cleared match of menu item #%d\n", id)
				})
			})
		},
	}

	cmd.Flags().StringVar(&actor, "actor", os.Getenv("USER"), "Who is making the change")

	return cmd
}

func newItemHistoryCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "history <id>",
		Short: "Show the accepted matches of a menu item, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withDeps(cmd.Context(), flags, func(d *Deps) error {
				history, err := d.Menus.History(cmd.Context(), id)
				if err != nil {
					return err
				}
				return emit(cmd, flags, history, func(w io.Writer) {
					if len(history) == 0 {
						fmt.Fprintln(w, "No match history.")
						return
					}
					tw := newTable(w)
					fmt.Fprintln(tw, "WHEN\tSTANDARD MENU\tCONFIDENCE\tMETHOD")
					for i := range history {
						h := &history[i]
						fmt.Fprintf(tw, "%s\t%d\t%.3f\t%s\n", h.CreatedAt.Format("2006-01-02 15:04:05"), h.StandardMenuID, h.Confidence, h.Method)
					}
					tw.Flush()
				})
			})
		},
	}
}

func newItemRematchCmd(flags *globalFlags) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "rematch",
		Short: "Retry automatic matching on unmatched items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd.Context(), flags, func(d *Deps) error {
				summary, err := d.Menus.RematchUnmatched(cmd.Context(), limit)
				if err != nil {
					return err
				}
				return emit(cmd, flags, summary, func(w io.Writer) {
					fmt.Fprintf(w, "Matched %d of %d unmatched items (%.1f%%)\n",
						summary.Matched, summary.Total, summary.SuccessRate*100)
				})
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", services.DefaultRematchLimit, "Maximum number of items to visit")

	return cmd
}

func newItemBatchCmd(flags *globalFlags) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "batch <id>...",
		Short: "Run automatic matching on several menu items",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := parseID(arg)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}

			return withDeps(cmd.Context(), flags, func(d *Deps) error {
				results, err := d.Menus.BatchMatch(cmd.Context(), ids, services.MatchOptions{Force: force})
				if err != nil {
					return err
				}
				return emit(cmd, flags, results, func(w io.Writer) {
					for i := range results {
						r := &results[i]
						fmt.Fprintf(w, "#%d: ", r.ItemID)
						if r.Error != "" {
							fmt.Fprintf(w, "error: %s\n", r.Error)
							continue
						}
						printResult(w, r.Result)
					}
				})
			})
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Re-score verified automatic matches too")

	return cmd
}

func newPreviewCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "preview <name>",
		Short: "Show how a raw name would match without storing anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd.Context(), flags, func(d *Deps) error {
				res, err := d.Menus.Preview(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return emit(cmd, flags, res, func(w io.Writer) {
					fmt.Fprintf(w, "Key: %s\n", res.NormalizedName)
					printResult(w, &res.Result)
				})
			})
		},
	}
}
