// Package main provides the entry point for the menu CLI application.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

var version = "0.1.0-dev"

// globalFlags are shared by every command.
type globalFlags struct {
	dir     string
	jsonOut bool
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	rootCmd := newRootCmd()
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:           "menu",
		Short:         "Matches restaurant menu items to a standard menu catalog",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&flags.dir, "dir", "C", "", "Workspace directory holding .menu (default: current directory)")
	rootCmd.PersistentFlags().BoolVar(&flags.jsonOut, "json", false, "Print results as JSON")

	rootCmd.AddCommand(
		newInitCmd(flags),
		newServeCmd(flags),
		newCatalogCmd(flags),
		newRestaurantCmd(flags),
		newItemCmd(flags),
		newPreviewCmd(flags),
		newLedgerCmd(flags),
		newIndexCmd(flags),
	)

	return rootCmd
}

// printError writes err and any hints attached to it.
func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "error: %v\n", err)
	for _, hint := range errors.GetAllHints(err) {
		fmt.Fprintf(w, "hint: %s\n", hint)
	}
}

// workspace resolves the directory holding the .menu config.
func (f *globalFlags) workspace() (string, error) {
	if f.dir != "" {
		return f.dir, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting current directory: %w", err)
	}
	return cwd, nil
}
