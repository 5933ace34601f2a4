package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ersonp/menu-core/internal/domain/entities"
)

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// emit prints v as JSON when --json is set, otherwise calls text.
func emit(cmd *cobra.Command, flags *globalFlags, v any, text func(io.Writer)) error {
	if flags.jsonOut {
		return printJSON(cmd.OutOrStdout(), v)
	}
	text(cmd.OutOrStdout())
	return nil
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func printEntries(w io.Writer, list []entities.StandardMenuEntry) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No standard menus found.")
		return
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tACTIVE\tMATCHES\tALIASES")
	for i := range list {
		e := &list[i]
		fmt.Fprintf(tw, "%d\t%s\t%s\t%v\t%d\t%d\n", e.ID, e.Name, e.Category, e.IsActive, e.MatchCount, len(e.Aliases))
	}
	tw.Flush()
}

func printEntry(w io.Writer, e *entities.StandardMenuEntry) {
	fmt.Fprintf(w, "ID:          %d\n", e.ID)
	fmt.Fprintf(w, "Name:        %s\n", e.Name)
	fmt.Fprintf(w, "Key:         %s\n", e.NormalizedName)
	if e.Category != "" {
		fmt.Fprintf(w, "Category:    %s\n", e.Category)
	}
	if e.Description != "" {
		fmt.Fprintf(w, "Description: %s\n", truncate(e.Description, 60))
	}
	fmt.Fprintf(w, "Active:      %v\n", e.IsActive)
	fmt.Fprintf(w, "Matches:     %d\n", e.MatchCount)
	for _, alias := range e.Aliases {
		fmt.Fprintf(w, "Alias:       %s\n", alias)
	}
}

func printItems(w io.Writer, list []entities.MenuItem) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No menu items found.")
		return
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tNAME\tSTANDARD MENU\tCONFIDENCE\tMETHOD\tVERIFIED")
	for i := range list {
		it := &list[i]
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%v\n",
			it.ID, it.OriginalName, ref(it.StandardMenuID), confidence(it.MatchConfidence), it.MatchMethod, it.IsVerified)
	}
	tw.Flush()
}

func printItem(w io.Writer, it *entities.MenuItem) {
	fmt.Fprintf(w, "ID:            %d\n", it.ID)
	fmt.Fprintf(w, "Name:          %s\n", it.OriginalName)
	fmt.Fprintf(w, "Key:           %s\n", it.NormalizedName)
	if it.RestaurantID != nil {
		fmt.Fprintf(w, "Restaurant:    %d\n", *it.RestaurantID)
	}
	if it.Price != nil {
		fmt.Fprintf(w, "Price:         %d\n", *it.Price)
	}
	fmt.Fprintf(w, "Standard menu: %s\n", ref(it.StandardMenuID))
	fmt.Fprintf(w, "Confidence:    %s\n", confidence(it.MatchConfidence))
	fmt.Fprintf(w, "Method:        %s\n", it.MatchMethod)
	fmt.Fprintf(w, "Verified:      %v\n", it.IsVerified)
}

func printResult(w io.Writer, res *entities.MatchResult) {
	switch {
	case res.Skipped:
		fmt.Fprintf(w, "Unchanged: %s match to %s kept\n", res.Method, ref(res.StandardMenuID))
	case res.StandardMenuID == nil:
		fmt.Fprintf(w, "No match (%d candidates considered)\n", res.CandidatesConsidered)
	default:
		verified := "pending review"
		if res.Verified {
			verified = "verified"
		}
		fmt.Fprintf(w, "Matched %s (#%d), confidence %s, %s\n",
			res.StandardMenuName, *res.StandardMenuID, confidence(res.Confidence), verified)
	}
}

func ref(id *int64) string {
	if id == nil {
		return "-"
	}
	return strconv.FormatInt(*id, 10)
}

func confidence(c *float64) string {
	if c == nil {
		return "-"
	}
	return strconv.FormatFloat(*c, 'f', 3, 64)
}

// truncate shortens a string to max runes with ellipsis.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
