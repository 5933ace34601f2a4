package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ersonp/menu-core/internal/application/handlers"
	"github.com/ersonp/menu-core/internal/infrastructure/api"
	"github.com/ersonp/menu-core/internal/infrastructure/config"
)

type initFlags struct {
	seed     bool
	semantic bool
}

func newInitCmd(flags *globalFlags) *cobra.Command {
	var f initFlags

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new menu workspace",
		Long:  "Creates a .menu directory with default configuration, the database schema and, with --seed, a sample catalog.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, flags, f)
		},
	}

	cmd.Flags().BoolVar(&f.seed, "seed", false, "Load the sample Korean catalog")
	cmd.Flags().BoolVar(&f.semantic, "semantic", false, "Enable the Qdrant semantic candidate source")

	return cmd
}

func runInit(cmd *cobra.Command, flags *globalFlags, f initFlags) error {
	base, err := flags.workspace()
	if err != nil {
		return err
	}

	if config.Exists(base) {
		return fmt.Errorf("menu already initialized in %s", base)
	}

	if f.semantic {
		cfg := config.Default()
		cfg.Semantic.Enabled = true
		err = config.Write(base, cfg)
	} else {
		err = config.WriteDefault(base)
	}
	if err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return withRawDeps(cmd.Context(), flags, func(d *Deps) error {
		result, err := d.InitHandler().Handle(cmd.Context(), handlers.InitOptions{Seed: f.seed})
		if err != nil {
			return err
		}

		return emit(cmd, flags, result, func(w io.Writer) {
			fmt.Fprintf(w, "Created %s\n", config.ConfigFilePath(base))
			if d.Semantic != nil {
				fmt.Fprintf(w, "Created Qdrant collection: %s\n", d.Config.Qdrant.Collection)
			}
			if f.seed {
				fmt.Fprintf(w, "Seeded %d standard menus\n", result.Seeded)
			}
			fmt.Fprintln(w, "Menu workspace initialized.")
		})
	})
}

func newServeCmd(flags *globalFlags) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd.Context(), flags, func(d *Deps) error {
				serverCfg := d.Config.Server
				if addr != "" {
					serverCfg.Addr = addr
				}
				return api.NewServer(d.API(), d.Logger).Run(cmd.Context(), serverCfg)
			})
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")

	return cmd
}

func newIndexCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Manage the candidate indexes",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "sync",
		Short: "Rebuild the lexical index and, when enabled, the semantic collection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRawDeps(cmd.Context(), flags, func(d *Deps) error {
				result, err := d.SyncHandler().Handle(cmd.Context())
				if err != nil {
					return err
				}
				return emit(cmd, flags, result, func(w io.Writer) {
					fmt.Fprintf(w, "Indexed %d active standard menus\n", result.Indexed)
					if d.Semantic != nil {
						fmt.Fprintf(w, "Embedded %d entries into %s\n", result.Embedded, d.Config.Qdrant.Collection)
					}
				})
			})
		},
	})

	return cmd
}
