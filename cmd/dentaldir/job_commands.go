package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"dentaldir/internal/api"
	"dentaldir/internal/apiclient"
	"dentaldir/internal/daemonrun"
	"dentaldir/internal/regen"
	"dentaldir/internal/scheduler"
	"dentaldir/internal/store"
)

func newJobCommand(ctx *commandContext) *cobra.Command {
	jobCmd := &cobra.Command{
		Use:   "job",
		Short: "Run and inspect regeneration jobs",
	}
	jobCmd.AddCommand(newJobRunCommand(ctx))
	jobCmd.AddCommand(newJobListCommand(ctx))
	jobCmd.AddCommand(newJobShowCommand(ctx))
	jobCmd.AddCommand(newJobItemsCommand(ctx))
	jobCmd.AddCommand(newJobSweepCommand(ctx))
	jobCmd.AddCommand(newJobWatchCommand(ctx))
	return jobCmd
}

func newJobRunCommand(ctx *commandContext) *cobra.Command {
	var (
		jobID     string
		pages     []string
		pagesFile string
		fields    []string
		applyMode string
		threshold int
		wordCount int
		prompt    string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Regenerate a batch of pages",
		Example: `  dentaldir job run --pages p1,p2 --fields meta_title,meta_description
  dentaldir job run --pages-file ids.txt --fields all --apply-mode auto_apply`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := collectPageIDs(pages, pagesFile)
			if err != nil {
				return err
			}
			regenCfg, err := parseFields(fields)
			if err != nil {
				return err
			}
			regenCfg.TargetWordCount = wordCount
			req := api.JobRequest{
				JobID:        jobID,
				PageIDs:      ids,
				Config:       regenCfg,
				ApplyMode:    applyMode,
				CustomPrompt: prompt,
			}
			if cmd.Flags().Changed("threshold") {
				req.QualityThreshold = &threshold
			}

			return ctx.withRuntime(cmd, func(c context.Context, rt *daemonrun.Runtime) error {
				result, err := rt.Service.RunJob(c, req)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, result)
				}
				printResult(cmd, result)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&jobID, "job-id", "", "Job identifier (generated when empty)")
	cmd.Flags().StringSliceVar(&pages, "pages", nil, "Comma separated page ids")
	cmd.Flags().StringVar(&pagesFile, "pages-file", "", "File with one page id per line")
	cmd.Flags().StringSliceVar(&fields, "fields", []string{"all"}, "Fields to regenerate: h1, meta_title, meta_description, content, sections, faq or all")
	cmd.Flags().StringVar(&applyMode, "apply-mode", "", "auto_apply or quality_gated; any other value is a dry run (default from config)")
	cmd.Flags().IntVar(&threshold, "threshold", 0, "Quality threshold for quality_gated (default from config)")
	cmd.Flags().IntVar(&wordCount, "word-count", regen.DefaultTargetWordCount, "Target word count for body content")
	cmd.Flags().StringVar(&prompt, "prompt", "", "Extra instructions appended to the AI prompt")
	return cmd
}

func newJobListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd, func(c context.Context, rt *daemonrun.Runtime) error {
				jobs, err := rt.Service.Jobs(c, limit)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, api.JobListResponse{Jobs: jobs})
				}
				out := cmd.OutOrStdout()
				if len(jobs) == 0 {
					fmt.Fprintln(out, "No jobs")
					return nil
				}
				colorize := shouldColorize(out)
				rows := make([][]string, 0, len(jobs))
				for _, job := range jobs {
					rows = append(rows, []string{
						job.ID,
						colorStatus(job.Status, colorize),
						job.ApplyMode,
						fmt.Sprintf("%d/%d", job.Progress.Processed, job.Progress.Total),
						strconv.Itoa(job.Progress.Successful),
						strconv.Itoa(job.Progress.Failed),
						job.CreatedAt,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Job", "Status", "Mode", "Progress", "OK", "Failed", "Created"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum jobs to list")
	return cmd
}

func newJobShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show job counters and error log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd, func(c context.Context, rt *daemonrun.Runtime) error {
				job, err := rt.Service.Job(c, args[0])
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, api.JobResponse{Job: *job})
				}
				printJob(cmd, job)
				return nil
			})
		},
	}
}

func newJobItemsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "items <job-id>",
		Short: "List per-page outcomes of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd, func(c context.Context, rt *daemonrun.Runtime) error {
				items, err := rt.Service.Items(c, args[0])
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, api.JobItemsResponse{JobID: args[0], Items: items})
				}
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				rows := make([][]string, 0, len(items))
				for _, item := range items {
					rows = append(rows, []string{
						item.PageID,
						colorStatus(item.Status, colorize),
						strconv.Itoa(item.QualityScore),
						similarityLabel(item),
						yesNo(item.ChangesApplied),
						yesNo(item.UsedFallback),
						item.ErrorMessage,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Page", "Status", "Score", "Similarity", "Applied", "Fallback", "Error"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
}

func newJobSweepCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Fail running jobs that stopped making progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd, func(c context.Context, rt *daemonrun.Runtime) error {
				sweeper := scheduler.New(rt.Config, rt.Repo, rt.Logger, scheduler.WithNotifier(rt.Notifier))
				ids, err := sweeper.Sweep(c)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]any{"reclaimed": ids})
				}
				out := cmd.OutOrStdout()
				if len(ids) == 0 {
					fmt.Fprintln(out, "No stale jobs")
					return nil
				}
				for _, id := range ids {
					fmt.Fprintf(out, "Reclaimed %s\n", id)
				}
				return nil
			})
		},
	}
}

func newJobWatchCommand(ctx *commandContext) *cobra.Command {
	var (
		server   string
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch <job-id>",
		Short: "Follow a job on a running server until it finishes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if strings.TrimSpace(server) == "" {
				server = cfg.Paths.APIBind
			}
			client, err := apiclient.New(server, cfg.Paths.APIToken)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			final, err := client.Watch(cmd.Context(), args[0], interval, func(job api.Job) {
				if ctx.jsonOutput() {
					return
				}
				fmt.Fprintf(out, "%s %d/%d ok=%d failed=%d\n", job.Status,
					job.Progress.Processed, job.Progress.Total, job.Progress.Successful, job.Progress.Failed)
			})
			if apiclient.IsAPIUnavailable(err) {
				return fmt.Errorf("server at %s is not reachable: %w", server, err)
			}
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, api.JobResponse{Job: final})
			}
			printJob(cmd, &final)
			return nil
		},
	}
	cmd.Flags().StringVar(&server, "server", "", "Server address (default from api_bind)")
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "Polling interval")
	return cmd
}

func printResult(cmd *cobra.Command, result *regen.Result) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	renderKeyValue(out, "Job", result.JobID)
	renderKeyValue(out, "Status", colorStatus(string(result.Status), colorize))
	renderKeyValue(out, "Processed", strconv.Itoa(result.Processed))
	renderKeyValue(out, "Successful", strconv.Itoa(result.Successful))
	renderKeyValue(out, "Failed", strconv.Itoa(result.Failed))
	for _, e := range result.Errors {
		fmt.Fprintf(out, "  - %s\n", e)
	}
}

func printJob(cmd *cobra.Command, job *api.Job) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	renderKeyValue(out, "Job", job.ID)
	renderKeyValue(out, "Status", colorStatus(job.Status, colorize))
	renderKeyValue(out, "Apply mode", job.ApplyMode)
	renderKeyValue(out, "Threshold", strconv.Itoa(job.QualityThreshold))
	renderKeyValue(out, "Fields", strings.Join(job.Fields, ", "))
	renderKeyValue(out, "Progress", fmt.Sprintf("%d/%d (%.1f%%)", job.Progress.Processed, job.Progress.Total, job.Progress.Percent))
	renderKeyValue(out, "Successful", strconv.Itoa(job.Progress.Successful))
	renderKeyValue(out, "Failed", strconv.Itoa(job.Progress.Failed))
	if job.StartedAt != "" {
		renderKeyValue(out, "Started", job.StartedAt)
	}
	if job.CompletedAt != "" {
		renderKeyValue(out, "Completed", job.CompletedAt)
	}
	if len(job.ErrorLog) > 0 {
		fmt.Fprintln(out, "Errors:")
		for _, e := range job.ErrorLog {
			fmt.Fprintf(out, "  - %s\n", e)
		}
	}
}

// collectPageIDs merges --pages with the lines of --pages-file.
func collectPageIDs(pages []string, pagesFile string) ([]string, error) {
	ids := append([]string(nil), pages...)
	if strings.TrimSpace(pagesFile) != "" {
		data, err := os.ReadFile(pagesFile)
		if err != nil {
			return nil, fmt.Errorf("read pages file: %w", err)
		}
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			ids = append(ids, line)
		}
	}
	if len(ids) == 0 {
		return nil, errors.New("no pages given (use --pages or --pages-file)")
	}
	return ids, nil
}

func parseFields(fields []string) (store.RegenerationConfig, error) {
	var cfg store.RegenerationConfig
	for _, field := range fields {
		switch strings.ToLower(strings.TrimSpace(field)) {
		case "all":
			cfg.RegenerateH1 = true
			cfg.RegenerateMetaTitle = true
			cfg.RegenerateMetaDescription = true
			cfg.RegenerateContent = true
			cfg.RegenerateSections = true
			cfg.RegenerateFAQ = true
		case "h1":
			cfg.RegenerateH1 = true
		case "meta_title", "title":
			cfg.RegenerateMetaTitle = true
		case "meta_description", "description":
			cfg.RegenerateMetaDescription = true
		case "content":
			cfg.RegenerateContent = true
		case "sections":
			cfg.RegenerateSections = true
		case "faq":
			cfg.RegenerateFAQ = true
		case "":
		default:
			return cfg, fmt.Errorf("unknown field %q", field)
		}
	}
	return cfg, nil
}

// similarityLabel is blank for failed items, which never produced content.
func similarityLabel(item api.JobItem) string {
	if item.After == nil {
		return ""
	}
	return strconv.FormatFloat(item.ContentSimilarity, 'f', 2, 64)
}
