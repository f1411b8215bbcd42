// Package main implements the job-runner CLI for invoking scheduler tasks
// directly, bypassing the Lambda shim.
//
// It is intended for local development and for replaying a missed hourly tick
// with an explicit reference time.
//
// Usage:
//
//	go run ./cmd/tools/job-runner --task=send_reminders
//	go run ./cmd/tools/job-runner --task=send_reminders --reference-time=2026-03-10T18:00:00Z
//	go run ./cmd/tools/job-runner --dry-run --task=prune_history
//	go run ./cmd/tools/job-runner --list
//
// Configuration is loaded the same way as the services (environment, then
// .env, then SSM outside local). In --dry-run mode the JSON payload the
// EventBridge rule would send is printed without executing.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"clinicremind/internal/app"
	"clinicremind/internal/scheduler"
)

// validTasks is the set of TaskType values the scheduler Lambda supports.
var validTasks = map[scheduler.TaskType]string{
	scheduler.TaskSendReminders: "Send due 24h/2h/1h reminders for every clinic",
	scheduler.TaskPruneHistory:  "Delete job history and message log rows past retention",
}

func main() {
	taskFlag := flag.String("task", "", "Task type to execute (e.g., send_reminders)")
	refTimeFlag := flag.String("reference-time", "", "Override reference time (RFC3339, e.g., 2026-03-10T18:00:00Z)")
	listFlag := flag.Bool("list", false, "List all available task types and exit")
	dryRunFlag := flag.Bool("dry-run", false, "Print the JSON payload without executing")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: job-runner [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Invoke scheduler tasks directly, bypassing Lambda.\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *listFlag {
		printAvailableTasks(os.Stdout)
		return
	}

	payload, err := buildPayload(*taskFlag, *refTimeFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n\n", err)
		flag.Usage()
		os.Exit(1)
	}

	if *dryRunFlag {
		if err := printPayload(os.Stdout, payload); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := execute(ctx, payload); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// buildPayload validates the flags into the payload the Lambda would receive.
func buildPayload(task, refTime string) (scheduler.TaskPayload, error) {
	if task == "" {
		return scheduler.TaskPayload{}, fmt.Errorf("--task is required")
	}
	taskType := scheduler.TaskType(task)
	if _, ok := validTasks[taskType]; !ok {
		return scheduler.TaskPayload{}, fmt.Errorf("unknown task type %q", task)
	}

	payload := scheduler.TaskPayload{Task: taskType}
	if refTime != "" {
		t, err := time.Parse(time.RFC3339, refTime)
		if err != nil {
			return scheduler.TaskPayload{}, fmt.Errorf("invalid --reference-time %q: %w", refTime, err)
		}
		payload.ReferenceTime = &t
	}
	return payload, nil
}

// execute builds the application graph and runs the task in process.
func execute(ctx context.Context, payload scheduler.TaskPayload) error {
	cfg, err := app.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	logger := app.NewLogger(cfg.LogLevel)

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	now := payload.Now(time.Now())
	logger.Info("executing task", "task", string(payload.Task), "reference_time", now.Format(time.RFC3339))

	switch payload.Task {
	case scheduler.TaskSendReminders:
		report := a.Runner.Run(ctx, now)
		out, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(out))
		if !report.Success {
			return fmt.Errorf("run %s failed: %s", report.RunID, report.Error)
		}
	case scheduler.TaskPruneHistory:
		n, err := a.Pruner.Prune(ctx, now)
		if err != nil {
			return fmt.Errorf("pruning history: %w", err)
		}
		logger.Info("history pruned", "items", n)
	}
	return nil
}

func printAvailableTasks(w io.Writer) {
	names := make([]string, 0, len(validTasks))
	for t := range validTasks {
		names = append(names, string(t))
	}
	sort.Strings(names)

	fmt.Fprintln(w, "Available tasks:")
	for _, n := range names {
		fmt.Fprintf(w, "  %-16s %s\n", n, validTasks[scheduler.TaskType(n)])
	}
}

func printPayload(w io.Writer, payload scheduler.TaskPayload) error {
	out, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling payload: %w", err)
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}
