package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sevigo/codewarden/internal/llm"
)

var analyzeCacheType string

var analyzeCmd = &cobra.Command{
	Use:   "analyze [repo-path] [file-path]",
	Short: "Run (or serve from cache) one cache-type analysis of a file",
	Args:  cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		repoPath, filePath := args[0], args[1]

		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		deps, err := newCLIDeps(cfg, logger)
		if err != nil {
			return err
		}
		defer deps.cleanup()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		color.New(color.FgCyan).Printf("analyzing %s (%s)...\n", filePath, analyzeCacheType)

		payload, err := deps.analysis.Analyze(ctx, llm.CacheType(analyzeCacheType), repoPath, filePath)
		if err != nil {
			return fmt.Errorf("analysis failed: %w", err)
		}

		var pretty map[string]any
		if err := json.Unmarshal(payload, &pretty); err == nil {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(pretty)
		}
		_, err = os.Stdout.Write(payload)
		return err
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeCacheType, "cache-type", "todos", "one of: refactor, docs, analysis, todos")
}
