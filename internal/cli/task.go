package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/taskledger/internal/core"
	"github.com/valter-silva-au/taskledger/pkg/models"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage task ownership, status and progress",
	Long: `Task lifecycle commands.

Create tasks, claim and release them, move them between statuses, report
progress, and read the progress ledger.`,
}

// resolveActor returns --actor, falling back to the configured actor.
func resolveActor() (string, error) {
	actor := strings.TrimSpace(actorFlag)
	if actor == "" {
		actor = strings.TrimSpace(DefaultActor)
	}
	if actor == "" {
		return "", fmt.Errorf("%w: no actor, pass --actor or set actor in .taskledger.yaml", core.ErrValidation)
	}
	return actor, nil
}

// cmdContext returns the command's context, or Background when the command
// is invoked directly rather than through Execute.
func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func requireLifecycle() error {
	if Lifecycle == nil {
		return fmt.Errorf("lifecycle service not initialized")
	}
	return nil
}

var (
	taskCreateID            string
	taskCreateAssignee      string
	taskCreateDependsOn     []string
	taskCreateCollaborators []string
	taskCreateTags          []string
)

var taskCreateCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Create a new task",
	Long: `Create a new task with the given title.

The task starts UNCLAIMED, or CLAIMED when --assignee is given. Every id in
--depends-on must name an existing task. Tags are lowercase kebab-case.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireLifecycle(); err != nil {
			return err
		}
		actor, err := resolveActor()
		if err != nil {
			return err
		}

		task, err := Lifecycle.CreateTask(cmdContext(cmd), actor, models.NewTask{
			ID:            taskCreateID,
			Title:         args[0],
			AssigneeID:    taskCreateAssignee,
			Dependencies:  taskCreateDependsOn,
			Collaborators: taskCreateCollaborators,
			Tags:          taskCreateTags,
		})
		if err != nil {
			return fmt.Errorf("creating task: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Created task %s\n", task.ID)
		printTask(cmd.OutOrStdout(), task)
		return nil
	},
}

var taskShowJSON bool

var taskShowCmd = &cobra.Command{
	Use:   "show <task-id>",
	Short: "Show a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireLifecycle(); err != nil {
			return err
		}

		task, err := Lifecycle.GetTask(cmdContext(cmd), args[0])
		if err != nil {
			return fmt.Errorf("showing task %s: %w", args[0], err)
		}

		if taskShowJSON {
			return writeJSON(cmd.OutOrStdout(), task)
		}
		printTask(cmd.OutOrStdout(), task)
		return nil
	},
}

var taskClaimCmd = &cobra.Command{
	Use:   "claim <task-id>",
	Short: "Claim an unclaimed task",
	Long: `Assign an UNCLAIMED task to the acting actor.

If another actor claimed it first the command fails with exit code 4.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireLifecycle(); err != nil {
			return err
		}
		actor, err := resolveActor()
		if err != nil {
			return err
		}

		task, err := Lifecycle.ClaimTask(cmdContext(cmd), args[0], actor)
		if err != nil {
			return fmt.Errorf("claiming task %s: %w", args[0], err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Task %s claimed by %s\n", task.ID, actor)
		return nil
	},
}

var taskUnclaimCmd = &cobra.Command{
	Use:   "unclaim <task-id>",
	Short: "Release a task you hold",
	Long: `Return a CLAIMED or IN_PROGRESS task held by the acting actor to
UNCLAIMED. Progress is reset to 0; the progress ledger is kept.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireLifecycle(); err != nil {
			return err
		}
		actor, err := resolveActor()
		if err != nil {
			return err
		}

		task, err := Lifecycle.UnclaimTask(cmdContext(cmd), args[0], actor)
		if err != nil {
			return fmt.Errorf("unclaiming task %s: %w", args[0], err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Task %s released\n", task.ID)
		return nil
	},
}

var (
	taskStatusReason string
	taskStatusNote   string
)

var taskStatusCmd = &cobra.Command{
	Use:   "status <task-id> <status>",
	Short: "Move a task to a new status",
	Long: `Move a task to IN_PROGRESS, PAUSED, BLOCKED or DONE.

PAUSED requires --reason and accepts --note. For BLOCKED, --reason records
the blocker. Use "task claim" and "task unclaim" to change ownership.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireLifecycle(); err != nil {
			return err
		}
		actor, err := resolveActor()
		if err != nil {
			return err
		}

		status := models.TaskStatus(strings.ToUpper(strings.ReplaceAll(args[1], "-", "_")))
		payload := models.TransitionPayload{}
		switch status {
		case models.StatusPaused:
			payload.PauseReason = taskStatusReason
			payload.PauseNote = taskStatusNote
		case models.StatusBlocked:
			payload.BlockerReason = taskStatusReason
		}

		task, err := Lifecycle.UpdateStatus(cmdContext(cmd), args[0], actor, status, payload)
		if err != nil {
			return fmt.Errorf("updating status of task %s: %w", args[0], err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Task %s is now %s\n", task.ID, task.Status)
		return nil
	},
}

var taskProgressNotes string

var taskProgressCmd = &cobra.Command{
	Use:   "progress <task-id> <percentage>",
	Short: "Report progress on a task",
	Long: `Record a progress report between 0 and 100.

A positive report on a CLAIMED task starts it. 100 completes the task.
Every report is appended to the task's progress ledger.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireLifecycle(); err != nil {
			return err
		}
		actor, err := resolveActor()
		if err != nil {
			return err
		}

		pct, err := strconv.Atoi(strings.TrimSuffix(args[1], "%"))
		if err != nil {
			return fmt.Errorf("%w: percentage %q is not a number", core.ErrValidation, args[1])
		}

		task, err := Lifecycle.UpdateProgress(cmdContext(cmd), args[0], actor, pct, taskProgressNotes)
		if err != nil {
			return fmt.Errorf("reporting progress on task %s: %w", args[0], err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Task %s at %d%% (%s)\n", task.ID, task.ProgressPercentage, task.Status)
		return nil
	},
}

var taskLogsJSON bool

var taskLogsCmd = &cobra.Command{
	Use:   "logs <task-id>",
	Short: "Show a task's progress ledger, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireLifecycle(); err != nil {
			return err
		}

		entries, err := Lifecycle.GetTaskProgressLogs(cmdContext(cmd), args[0])
		if err != nil {
			return fmt.Errorf("reading progress logs of task %s: %w", args[0], err)
		}

		out := cmd.OutOrStdout()
		if taskLogsJSON {
			if entries == nil {
				entries = []models.ProgressLogEntry{}
			}
			return writeJSON(out, entries)
		}
		if len(entries) == 0 {
			fmt.Fprintf(out, "No progress reported on task %s.\n", args[0])
			return nil
		}
		printProgressLogs(out, entries)
		return nil
	},
}

func printTask(w io.Writer, t *models.Task) {
	fmt.Fprintf(w, "  ID:       %s\n", t.ID)
	fmt.Fprintf(w, "  Title:    %s\n", t.Title)
	fmt.Fprintf(w, "  Status:   %s\n", t.Status)
	if t.AssigneeID != nil {
		fmt.Fprintf(w, "  Assignee: %s\n", *t.AssigneeID)
	}
	fmt.Fprintf(w, "  Progress: %d%%\n", t.ProgressPercentage)
	if t.PauseReason != nil {
		fmt.Fprintf(w, "  Paused:   %s", *t.PauseReason)
		if t.PauseNote != nil {
			fmt.Fprintf(w, " (%s)", *t.PauseNote)
		}
		fmt.Fprintln(w)
	}
	if t.BlockerReason != nil {
		fmt.Fprintf(w, "  Blocker:  %s\n", *t.BlockerReason)
	}
	if t.ActualStartDate != nil {
		fmt.Fprintf(w, "  Started:  %s\n", t.ActualStartDate.Format(time.RFC3339))
	}
	if t.ClosedAt != nil {
		fmt.Fprintf(w, "  Closed:   %s\n", t.ClosedAt.Format(time.RFC3339))
	}
	if len(t.Dependencies) > 0 {
		fmt.Fprintf(w, "  Depends:  %s\n", strings.Join(t.Dependencies, ", "))
	}
	if len(t.Collaborators) > 0 {
		fmt.Fprintf(w, "  Collabs:  %s\n", strings.Join(t.Collaborators, ", "))
	}
	if len(t.Tags) > 0 {
		fmt.Fprintf(w, "  Tags:     %s\n", strings.Join(t.Tags, ", "))
	}
}

func printProgressLogs(w io.Writer, entries []models.ProgressLogEntry) {
	fmt.Fprintf(w, "%-20s %-12s %5s %6s  %-8s %s\n", "REPORTED", "ACTOR", "PCT", "DELTA", "TYPE", "NOTES")
	for _, e := range entries {
		fmt.Fprintf(w, "%-20s %-12s %4d%% %+6d  %-8s %s\n",
			e.ReportedAt.UTC().Format("2006-01-02 15:04:05"),
			e.ActorID, e.ProgressPercentage, e.ProgressDelta, e.ReportType, e.Notes)
	}
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("formatting JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func init() {
	taskCreateCmd.Flags().StringVar(&taskCreateID, "id", "", "Task id (generated when empty)")
	taskCreateCmd.Flags().StringVar(&taskCreateAssignee, "assignee", "", "Create the task already claimed by this actor")
	taskCreateCmd.Flags().StringSliceVar(&taskCreateDependsOn, "depends-on", nil, "Ids of tasks this task depends on")
	taskCreateCmd.Flags().StringSliceVar(&taskCreateCollaborators, "collaborators", nil, "Actors allowed to report progress besides the assignee")
	taskCreateCmd.Flags().StringSliceVar(&taskCreateTags, "tags", nil, "Tags for the task")

	taskShowCmd.Flags().BoolVar(&taskShowJSON, "json", false, "Output the task as JSON")
	taskLogsCmd.Flags().BoolVar(&taskLogsJSON, "json", false, "Output the ledger as JSON")

	taskStatusCmd.Flags().StringVar(&taskStatusReason, "reason", "", "Pause reason (PAUSED) or blocker reason (BLOCKED)")
	taskStatusCmd.Flags().StringVar(&taskStatusNote, "note", "", "Pause note (PAUSED only)")

	taskProgressCmd.Flags().StringVar(&taskProgressNotes, "notes", "", "Free-form notes stored with the report")

	taskCmd.AddCommand(taskCreateCmd)
	taskCmd.AddCommand(taskShowCmd)
	taskCmd.AddCommand(taskClaimCmd)
	taskCmd.AddCommand(taskUnclaimCmd)
	taskCmd.AddCommand(taskStatusCmd)
	taskCmd.AddCommand(taskProgressCmd)
	taskCmd.AddCommand(taskLogsCmd)
	rootCmd.AddCommand(taskCmd)
}
