package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ersonp/menu-core/internal/domain/entities"
)

func newRestaurantCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restaurant",
		Short: "Manage restaurants",
	}

	cmd.AddCommand(newRestaurantAddCmd(flags), newRestaurantListCmd(flags))

	return cmd
}

func newRestaurantAddCmd(flags *globalFlags) *cobra.Command {
	var r entities.Restaurant

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a restaurant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r.Name = args[0]
			return withDeps(cmd.Context(), flags, func(d *Deps) error {
				created, err := d.Restaurants.Create(cmd.Context(), r)
				if err != nil {
					return err
				}
				return emit(cmd, flags, created, func(w io.Writer) {
					fmt.Fprintf(w, "Added restaurant #%d: %s\n", created.ID, created.Name)
				})
			})
		},
	}

	cmd.Flags().StringVar(&r.Address, "address", "", "Street address")
	cmd.Flags().StringVar(&r.Phone, "phone", "", "Phone number")
	cmd.Flags().StringVar(&r.Category, "category", "", "Cuisine category")

	return cmd
}

func newRestaurantListCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List restaurants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd.Context(), flags, func(d *Deps) error {
				list, err := d.Restaurants.List(cmd.Context())
				if err != nil {
					return err
				}
				return emit(cmd, flags, list, func(w io.Writer) {
					if len(list) == 0 {
						fmt.Fprintln(w, "No restaurants found.")
						return
					}
					tw := newTable(w)
					fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tPHONE")
					for i := range list {
						fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", list[i].ID, list[i].Name, list[i].Category, list[i].Phone)
					}
					tw.Flush()
				})
			})
		},
	}
}
