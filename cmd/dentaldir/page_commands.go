package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"dentaldir/internal/api"
	"dentaldir/internal/daemonrun"
	"dentaldir/internal/logging"
	"dentaldir/internal/store"
	"dentaldir/internal/textutil"
)

func newPageCommand(ctx *commandContext) *cobra.Command {
	pageCmd := &cobra.Command{
		Use:   "page",
		Short: "Import pages and manage content versions",
	}
	pageCmd.AddCommand(newPageImportCommand(ctx))
	pageCmd.AddCommand(newPageHistoryCommand(ctx))
	pageCmd.AddCommand(newPageRollbackCommand(ctx))
	return pageCmd
}

func newPageImportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.json>",
		Short: "Insert or update pages from a JSON array",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pages, err := readPages(args[0])
			if err != nil {
				return err
			}
			return ctx.withRuntime(cmd, func(c context.Context, rt *daemonrun.Runtime) error {
				for _, page := range pages {
					if _, err := textutil.ParseSlug(page.Slug); err != nil {
						rt.Logger.Warn("page slug is not state/city[/service]; search and prompts will lack location context",
							logging.String(logging.FieldPageID, page.ID),
							logging.String("slug", page.Slug),
						)
					}
					if err := rt.Repo.UpsertPage(c, page); err != nil {
						return fmt.Errorf("import page %s: %w", page.ID, err)
					}
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]any{"imported": len(pages)})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d page(s)\n", len(pages))
				return nil
			})
		},
	}
}

func newPageHistoryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "history <page-id>",
		Short: "List content versions of a page, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd, func(c context.Context, rt *daemonrun.Runtime) error {
				versions, err := rt.Service.Versions(c, args[0])
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, api.VersionsResponse{PageID: args[0], Versions: versions})
				}
				out := cmd.OutOrStdout()
				if len(versions) == 0 {
					fmt.Fprintln(out, "No versions")
					return nil
				}
				rows := make([][]string, 0, len(versions))
				for _, v := range versions {
					rows = append(rows, []string{
						v.ID,
						v.JobID,
						v.ChangedBy,
						yesNo(v.IsRolledBack),
						v.CreatedAt,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Version", "Job", "Changed by", "Rolled back", "Created"},
					rows, nil,
				))
				return nil
			})
		},
	}
}

func newPageRollbackCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "rollback <version-id>",
		Short: "Restore the content a version replaced",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd, func(c context.Context, rt *daemonrun.Runtime) error {
				version, err := rt.Service.Rollback(c, args[0])
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, api.FromVersion(version))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Page %s restored to the content before version %s\n", version.PageID, version.ID)
				return nil
			})
		},
	}
}

func readPages(path string) ([]*store.Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pages: %w", err)
	}
	var pages []*store.Page
	if err := json.Unmarshal(data, &pages); err != nil {
		return nil, fmt.Errorf("parse pages: %w", err)
	}
	if len(pages) == 0 {
		return nil, errors.New("pages file is empty")
	}
	for i, page := range pages {
		if page == nil || strings.TrimSpace(page.ID) == "" {
			return nil, fmt.Errorf("page %d: id is required", i)
		}
		page.ID = strings.TrimSpace(page.ID)
	}
	return pages, nil
}
