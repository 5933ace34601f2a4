package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ersonp/menu-core/internal/application/handlers"
	"github.com/ersonp/menu-core/internal/domain/entities"
	"github.com/ersonp/menu-core/internal/domain/services"
)

func newCatalogCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "catalog",
		Aliases: []string{"std"},
		Short:   "Manage the standard menu catalog",
	}

	cmd.AddCommand(
		newCatalogAddCmd(flags),
		newCatalogListCmd(flags),
		newCatalogShowCmd(flags),
		newCatalogUpdateCmd(flags),
		newCatalogActiveCmd(flags, "activate", true),
		newCatalogActiveCmd(flags, "deactivate", false),
		newCatalogRemoveCmd(flags),
		newCatalogPopularCmd(flags),
		newCatalogImportCmd(flags),
		newCatalogAliasCmd(flags),
	)

	return cmd
}

func newCatalogAddCmd(flags *globalFlags) *cobra.Command {
	var input services.CatalogInput

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a standard menu",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input.Name = args[0]
			return withDeps(cmd.Context(), flags, func(d *Deps) error {
				entry, err := d.Catalog.Create(cmd.Context(), input)
				if err != nil {
					return err
				}
				return emit(cmd, flags, entry, func(w io.Writer) {
					fmt.Fprintf(w, "Added standard menu #%d: %s\n", entry.ID, entry.Name)
				})
			})
		},
	}

	cmd.Flags().StringVar(&input.Category, "category", "", "Category, e.g. 한식-찌개")
	cmd.Flags().StringVar(&input.Description, "description", "", "Free-text description")

	return cmd
}

func newCatalogListCmd(flags *globalFlags) *cobra.Command {
	var activeOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List standard menus",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd.Context(), flags, func(d *Deps) error {
				list, err := d.Catalog.List(cmd.Context(), activeOnly)
				if err != nil {
					return err
				}
				return emit(cmd, flags, list, func(w io.Writer) { printEntries(w, list) })
			})
		},
	}

	cmd.Flags().BoolVar(&activeOnly, "active", false, "Only list active entries")

	return cmd
}

func newCatalogShowCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a standard menu",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withDeps(cmd.Context(), flags, func(d *Deps) error {
				entry, err := d.Catalog.Get(cmd.Context(), id)
				if err != nil {
					return err
				}
				return emit(cmd, flags, entry, func(w io.Writer) { printEntry(w, entry) })
			})
		},
	}
}

func newCatalogUpdateCmd(flags *globalFlags) *cobra.Command {
	var name, category, description string

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Edit a standard menu",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			var update entities.StandardMenuUpdate
			if cmd.Flags().Changed("name") {
				update.Name = &name
			}
			if cmd.Flags().Changed("category") {
				update.Category = &category
			}
			if cmd.Flags().Changed("description") {
				update.Description = &description
			}

			return withDeps(cmd.Context(), flags, func(d *Deps) error {
				entry, err := d.Catalog.Update(cmd.Context(), id, update)
				if err != nil {
					return err
				}
				return emit(cmd, flags, entry, func(w io.Writer) { printEntry(w, entry) })
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "New name")
	cmd.Flags().StringVar(&category, "category", "", "New category")
	cmd.Flags().StringVar(&description, "description", "", "New description")

	return cmd
}

func newCatalogActiveCmd(flags *globalFlags, use string, active bool) *cobra.Command {
	short := "Make a standard menu available for matching"
	if !active {
		short = "Withdraw a standard menu from matching"
	}

	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withDeps(cmd.Context(), flags, func(d *Deps) error {
				entry, err := d.Catalog.SetActive(cmd.Context(), id, active)
				if err != nil {
					return err
				}
				return emit(cmd, flags, entry, func(w io.Writer) {
					fmt.Fprintf(w, "Standard menu #%d %sd\n", entry.ID, use)
				})
			})
		},
	}
}

func newCatalogRemoveCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Delete an unreferenced standard menu",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withDeps(cmd.Context(), flags, func(d *Deps) error {
				if err := d.Catalog.Delete(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed standard menu #%d\n", id)
				return nil
			})
		},
	}
}

func newCatalogPopularCmd(flags *globalFlags) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "popular",
		Short: "List the most matched standard menus",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd.Context(), flags, func(d *Deps) error {
				list, err := d.Catalog.Popular(cmd.Context(), limit)
				if err != nil {
					return err
				}
				return emit(cmd, flags, list, func(w io.Writer) { printEntries(w, list) })
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", services.DefaultPopularLimit, "Maximum number of entries")

	return cmd
}

type importFlags struct {
	format     string
	dryRun     bool
	onConflict string
}

func newCatalogImportCmd(flags *globalFlags) *cobra.Command {
	var f importFlags

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import standard menus from JSON or CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCatalogImport(cmd, flags, args[0], f)
		},
	}

	cmd.Flags().StringVarP(&f.format, "format", "f", "auto", "File format (json, csv, auto)")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "Validate without saving")
	cmd.Flags().StringVar(&f.onConflict, "on-conflict", "skip", "Conflict handling (skip, overwrite)")

	return cmd
}

func runCatalogImport(cmd *cobra.Command, flags *globalFlags, path string, f importFlags) error {
	strategy := services.ConflictStrategy(f.onConflict)
	if strategy != services.ConflictSkip && strategy != services.ConflictOverwrite {
		return fmt.Errorf("invalid --on-conflict value %q (valid: skip, overwrite)", f.onConflict)
	}

	return withDeps(cmd.Context(), flags, func(d *Deps) error {
		result, err := d.ImportHandler().Handle(cmd.Context(), path, handlers.ImportOptions{
			Format:     f.format,
			DryRun:     f.dryRun,
			OnConflict: strategy,
		})
		if err != nil {
			return fmt.Errorf("importing file: %w", err)
		}

		return emit(cmd, flags, result, func(w io.Writer) {
			if len(result.Errors) > 0 {
				fmt.Fprintf(w, "Validation errors (%d):\n", len(result.Errors))
				for _, e := range result.Errors {
					fmt.Fprintf(w, "  %s\n", e.Error())
				}
				fmt.Fprintln(w)
			}

			if f.dryRun {
				fmt.Fprintf(w, "Dry run: %d standard menus would be imported", result.Imported)
			} else {
				fmt.Fprintf(w, "Imported: %d standard menus", result.Imported)
			}
			if result.Overwritten > 0 {
				fmt.Fprintf(w, ", %d overwritten", result.Overwritten)
			}
			if result.Skipped > 0 {
				fmt.Fprintf(w, ", %d skipped (already exist)", result.Skipped)
			}
			if len(result.Errors) > 0 {
				fmt.Fprintf(w, ", %d errors", len(result.Errors))
			}
			fmt.Fprintln(w)
		})
	})
}

func newCatalogAliasCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alias",
		Short: "Manage alternate spellings of a standard menu",
	}

	aliasRun := func(add bool) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withDeps(cmd.Context(), flags, func(d *Deps) error {
				var entry *entities.StandardMenuEntry
				if add {
					entry, err = d.Catalog.AddAlias(cmd.Context(), id, args[1])
				} else {
					entry, err = d.Catalog.RemoveAlias(cmd.Context(), id, args[1])
				}
				if err != nil {
					return err
				}
				return emit(cmd, flags, entry, func(w io.Writer) { printEntry(w, entry) })
			})
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "add <id> <alias>",
			Short: "Accept a spelling as an alias",
			Args:  cobra.ExactArgs(2),
			RunE:  aliasRun(true),
		},
		&cobra.Command{
			Use:   "remove <id> <alias>",
			Short: "Drop an alias",
			Args:  cobra.ExactArgs(2),
			RunE:  aliasRun(false),
		},
	)

	return cmd
}

// parseID reads a positive numeric id argument.
func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, entities.ValidationErrorf("invalid id %q", arg)
	}
	return id, nil
}
