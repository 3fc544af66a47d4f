package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"paperlink/internal/config"
)

func newConfigCommand(cmdCtx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigShowCommand(cmdCtx))
	configCmd.AddCommand(newConfigValidateCommand(cmdCtx))
	configCmd.AddCommand(newConfigInitCommand())

	return configCmd
}

func newConfigShowCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}

			rows := [][]string{
				{"paths.data_dir", cfg.Paths.DataDir},
				{"paths.log_dir", cfg.Paths.LogDir},
				{"kg.base_url", cfg.KG.BaseURL},
				{"kg.user", cfg.KG.User},
				{"kg.password", redact(cfg.KG.Password)},
				{"kg.identifier_property", cfg.KG.IdentifierProperty},
				{"kg.repository_property", cfg.KG.RepositoryProperty},
				{"kg.reference_property", cfg.KG.ReferenceProperty},
				{"matcher.heuristic_enabled", yesNo(cfg.Matcher.HeuristicEnabled)},
				{"matcher.min_title_similarity", fmt.Sprintf("%.2f", cfg.Matcher.MinTitleSimilarity)},
				{"persistence.backend", cfg.Persistence.Backend},
				{"pipeline.workers", strconv.Itoa(cfg.Pipeline.Workers)},
				{"logging.format", cfg.Logging.Format},
				{"logging.level", cfg.Logging.Level},
			}
			for _, src := range cfg.Sources {
				rows = append(rows, []string{"source." + src.Tag, src.URL})
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTable("", []string{"Setting", "Value"}, rows, nil))
			return nil
		},
	}
}

func newConfigValidateCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if cmdCtx.configFlag != nil {
				path = strings.TrimSpace(*cmdCtx.configFlag)
			}
			cfg, resolved, exists, err := config.Load(path)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("ensure directories: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", resolved)
			if !exists {
				fmt.Fprintln(out, "Config file did not exist; defaults were used")
			}
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				target = expanded
			}

			dir := filepath.Dir(target)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create config directory %q: %w", dir, err)
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Edit the file to set kg.base_url and bot credentials (or export PAPERLINK_KG_USER / PAPERLINK_KG_PASSWORD) before running paperlink.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func redact(value string) string {
	if value == "" {
		return ""
	}
	return "********"
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
