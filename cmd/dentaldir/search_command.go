package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"dentaldir/internal/api"
	"dentaldir/internal/daemonrun"
)

func newSearchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "search <location|service|insurance> [query]",
		Short: "Rank autocomplete options for a query",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := args[0]
			query := ""
			if len(args) > 1 {
				query = args[1]
			}
			return ctx.withRuntime(cmd, func(c context.Context, rt *daemonrun.Runtime) error {
				results, err := rt.Service.Search(c, kind, query)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, api.SearchResponse{Kind: kind, Query: query, Results: results})
				}
				out := cmd.OutOrStdout()
				if len(results) == 0 {
					fmt.Fprintf(out, "No matches for %q\n", strings.TrimSpace(query))
					return nil
				}
				rows := make([][]string, 0, len(results))
				for _, r := range results {
					rows = append(rows, []string{r.Label, r.Value, strconv.Itoa(r.Score)})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Label", "Value", "Score"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight},
				))
				return nil
			})
		},
	}
}
