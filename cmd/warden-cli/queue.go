package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sevigo/codewarden/internal/queue"
	"github.com/sevigo/codewarden/internal/storage"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect and manage the priority work queue",
}

var (
	queueAddTitle    string
	queueAddBody     string
	queueAddSource   string
	queueAddPriority int
	queueAddRepoPath string
	queueAddFilePath string
)

var queueAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Enqueue a new work item",
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		deps, err := newCLIDeps(cfg, logger)
		if err != nil {
			return err
		}
		defer deps.cleanup()

		item := &storage.QueueItem{
			Title:    queueAddTitle,
			Body:     queueAddBody,
			Source:   queueAddSource,
			Priority: queueAddPriority,
			Stage:    "pending",
		}
		if queueAddRepoPath != "" {
			item.RepoPath.String, item.RepoPath.Valid = queueAddRepoPath, true
		}
		if queueAddFilePath != "" {
			item.FilePath.String, item.FilePath.Valid = queueAddFilePath, true
		}

		q := queue.New(deps.store)
		if err := q.Add(context.Background(), item); err != nil {
			return fmt.Errorf("failed to add queue item: %w", err)
		}
		color.New(color.FgGreen).Printf("queued item %s\n", item.ID)
		return nil
	},
}

var (
	queueListStage    string
	queueListRepoPath string
)

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List queued items, ordered by priority then age",
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		deps, err := newCLIDeps(cfg, logger)
		if err != nil {
			return err
		}
		defer deps.cleanup()

		q := queue.New(deps.store)
		items, err := q.List(context.Background(), storage.QueueFilter{Stage: queueListStage, RepoPath: queueListRepoPath})
		if err != nil {
			return fmt.Errorf("failed to list queue items: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tPRIORITY\tSTAGE\tTITLE\tCREATED")
		for _, item := range items {
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n", item.ID, item.Priority, item.Stage, item.Title, item.CreatedAt.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var queueAdvanceStage string

var queueAdvanceCmd = &cobra.Command{
	Use:   "advance [id]",
	Short: "Move a queue item to a new stage",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid queue item id: %w", err)
		}

		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		deps, err := newCLIDeps(cfg, logger)
		if err != nil {
			return err
		}
		defer deps.cleanup()

		q := queue.New(deps.store)
		if err := q.Advance(context.Background(), id, queueAdvanceStage); err != nil {
			return fmt.Errorf("failed to advance queue item: %w", err)
		}
		color.New(color.FgGreen).Printf("advanced %s to %s\n", id, queueAdvanceStage)
		return nil
	},
}

var queueDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Remove a queue item",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid queue item id: %w", err)
		}

		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		deps, err := newCLIDeps(cfg, logger)
		if err != nil {
			return err
		}
		defer deps.cleanup()

		q := queue.New(deps.store)
		if err := q.Delete(context.Background(), id); err != nil {
			return fmt.Errorf("failed to delete queue item: %w", err)
		}
		color.New(color.FgGreen).Printf("deleted %s\n", id)
		return nil
	},
}

func init() {
	queueAddCmd.Flags().StringVar(&queueAddTitle, "title", "", "work item title")
	queueAddCmd.Flags().StringVar(&queueAddBody, "body", "", "work item body")
	queueAddCmd.Flags().StringVar(&queueAddSource, "source", "cli", "work item source")
	queueAddCmd.Flags().IntVar(&queueAddPriority, "priority", queue.PriorityNormal, "priority 1 (low) to 4 (urgent)")
	queueAddCmd.Flags().StringVar(&queueAddRepoPath, "repo-path", "", "associated repository path")
	queueAddCmd.Flags().StringVar(&queueAddFilePath, "file-path", "", "associated file path")
	_ = queueAddCmd.MarkFlagRequired("title")

	queueListCmd.Flags().StringVar(&queueListStage, "stage", "", "filter by stage")
	queueListCmd.Flags().StringVar(&queueListRepoPath, "repo-path", "", "filter by repository path")

	queueAdvanceCmd.Flags().StringVar(&queueAdvanceStage, "stage", "", "new stage")
	_ = queueAdvanceCmd.MarkFlagRequired("stage")

	queueCmd.AddCommand(queueAddCmd)
	queueCmd.AddCommand(queueListCmd)
	queueCmd.AddCommand(queueAdvanceCmd)
	queueCmd.AddCommand(queueDeleteCmd)
}
