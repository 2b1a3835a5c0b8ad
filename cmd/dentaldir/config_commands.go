package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"dentaldir/internal/config"
	"dentaldir/internal/daemonrun"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Inspect or scaffold the config file"}
	cmd.AddCommand(newConfigValidateCommand(ctx), newConfigInitCommand())
	return cmd
}

func newConfigInitCommand() *cobra.Command {
	var (
		targetPath string
		overwrite  bool
	)
	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write an annotated sample config",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := config.DefaultConfigPath()
			if custom := strings.TrimSpace(targetPath); custom != "" {
				target, err = config.ExpandPath(custom)
			}
			if err != nil {
				return fmt.Errorf("resolve config path: %w", err)
			}
			if err := config.WriteSample(target, overwrite); err != nil {
				if errors.Is(err, config.ErrConfigExists) {
					return fmt.Errorf("%w (pass --overwrite to replace it)", err)
				}
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Set llm.api_key or DENTALDIR_LLM_API_KEY before starting a job.")
			return nil
		},
	}
	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Where to write the config (defaults to the per-user location)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing file")
	return cmd
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	var checkLLM bool
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", ctx.configPath)
			renderKeyValue(out, "Storage", cfg.Storage.Driver)
			renderKeyValue(out, "Data dir", cfg.Paths.DataDir)
			renderKeyValue(out, "API bind", cfg.Paths.APIBind)
			renderKeyValue(out, "Redis", yesNo(strings.TrimSpace(cfg.Redis.URL) != ""))
			renderKeyValue(out, "LLM model", cfg.LLM.Model)
			if checkLLM {
				if err := daemonrun.NewLLMClient(cfg).HealthCheck(cmd.Context()); err != nil {
					return fmt.Errorf("llm health check: %w", err)
				}
				renderKeyValue(out, "LLM", "reachable")
			}
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
	cmd.Flags().BoolVar(&checkLLM, "check-llm", false, "Send a test request to the AI endpoint")
	return cmd
}
