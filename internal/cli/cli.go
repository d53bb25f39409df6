package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mkostova/taskgrid/internal/log"
	internal_http "github.com/mkostova/taskgrid/internal/http"
	internal_storage "github.com/mkostova/taskgrid/internal/storage"
	"github.com/mkostova/taskgrid/pkg/executor"
	"github.com/mkostova/taskgrid/pkg/models"
	"github.com/mkostova/taskgrid/pkg/service"
	"github.com/mkostova/taskgrid/pkg/storage"
)

// Exit codes distinguish a clean run from one that finished with task
// failures and from an aborted run.
const (
	ExitCompleted             = 0
	ExitCompletedWithFailures = 1
	ExitAborted               = 2
)

func SetupCLI(rootCmd *cobra.Command) {
	runAllCmd := &cobra.Command{
		Use:   "run-all",
		Short: "Execute every level of a plan",
		Run: func(cmd *cobra.Command, args []string) {
			svc, cfg, tasks := setupRun(cmd)
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rep, err := svc.ExecuteRun(ctx, tasks, cfg)
			if err != nil {
				log.GetLogger().Errorf("Run failed: %v", err)
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(ExitAborted)
			}
			printReport(rep)
			os.Exit(exitCode(rep.Status))
		},
	}
	runAllCmd.Flags().String("plan", "", "Path to the plan file (required)")
	runAllCmd.Flags().Bool("stop-on-error", false, "Abort remaining levels after the first failed task")
	runAllCmd.Flags().Int("max-parallelism", 0, "Worker pool bound per level (0 keeps the stored/default value)")
	runAllCmd.Flags().Int("iterations", 0, "Number of full-plan iterations (0 keeps the stored/default value)")
	runAllCmd.Flags().String("target", "", "Base URL of the system under test")
	_ = runAllCmd.MarkFlagRequired("plan")

	runLevelCmd := &cobra.Command{
		Use:   "run-level [index]",
		Short: "Execute a single level of a plan",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			index, err := strconv.Atoi(args[0])
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: level index must be a number, got '%s'\n", args[0])
				os.Exit(ExitAborted)
			}
			svc, cfg, tasks := setupRun(cmd)
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rep, err := svc.ExecuteLevel(ctx, tasks, cfg, index)
			if err != nil {
				log.GetLogger().Errorf("Level run failed: %v", err)
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(ExitAborted)
			}
			printReport(rep)
			os.Exit(exitCode(rep.Status))
		},
	}
	runLevelCmd.Flags().String("plan", "", "Path to the plan file (required)")
	runLevelCmd.Flags().Bool("stop-on-error", false, "Abort remaining levels after the first failed task")
	runLevelCmd.Flags().Int("max-parallelism", 0, "Worker pool bound per level (0 keeps the stored/default value)")
	runLevelCmd.Flags().Int("iterations", 0, "Ignored for single-level runs")
	runLevelCmd.Flags().String("target", "", "Base URL of the system under test")
	_ = runLevelCmd.MarkFlagRequired("plan")

	reportCmd := &cobra.Command{
		Use:   "report [plan-name]",
		Short: "Print the last persisted report of a plan",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			store := initStore(cmd)
			defer store.Close()
			svc := service.NewRunService(store, nil, log.GetLogger())
			rep, err := svc.Report(args[0])
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(ExitAborted)
			}
			printReport(rep)
			os.Exit(exitCode(rep.Status))
		},
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve persisted run reports over HTTP",
		Run: func(cmd *cobra.Command, args []string) {
			store := initStore(cmd)
			defer store.Close()
			port, _ := cmd.Flags().GetString("port")
			if err := internal_http.StartServer(port, store); err != nil {
				log.GetLogger().Errorf("Server failed: %v", err)
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(ExitAborted)
			}
		},
	}
	serveCmd.Flags().String("port", "8080", "Port to listen on")

	rootCmd.AddCommand(runAllCmd, runLevelCmd, reportCmd, serveCmd)
}

// setupRun wires the store, executor and service for a run command and folds
// CLI flag overrides into the stored configuration.
func setupRun(cmd *cobra.Command) (*service.RunService, models.RunConfig, []models.Task) {
	planPath, _ := cmd.Flags().GetString("plan")
	planName, tasks, err := LoadPlanFile(planPath)
	if err != nil {
		log.GetLogger().Errorf("Failed to load plan: %v", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitAborted)
	}

	store := initStore(cmd)
	exec := executor.NewHTTPExecutor(targetURL(cmd), "", log.GetLogger())
	svc := service.NewRunService(store, exec, log.GetLogger())

	cfg := svc.LoadConfig(planName)
	if v, _ := cmd.Flags().GetBool("stop-on-error"); v {
		cfg.StopOnError = true
	}
	if v, _ := cmd.Flags().GetInt("max-parallelism"); v > 0 {
		cfg.MaxParallelism = v
	}
	if v, _ := cmd.Flags().GetInt("iterations"); v > 0 {
		cfg.IterationCount = v
	}
	if v := targetURL(cmd); v != "" {
		cfg.HealthCheck.TargetURL = v
	}
	return svc, cfg, tasks
}

func targetURL(cmd *cobra.Command) string {
	v, _ := cmd.Flags().GetString("target")
	if v == "" {
		v = os.Getenv("TASKGRID_TARGET_URL")
	}
	return v
}

func initStore(cmd *cobra.Command) storage.Store {
	dbConnStr, err := cmd.Flags().GetString("db")
	if err != nil || dbConnStr == "" {
		dbConnStr = os.Getenv("TASKGRID_DB")
	}
	if dbConnStr == "" {
		log.GetLogger().Warnf("No database configured, reports will not survive this process")
		return storage.NewMockStore()
	}
	store, err := internal_storage.InitStore(dbConnStr)
	if err != nil {
		log.GetLogger().Errorf("Failed to initialize store: %v", err)
		fmt.Fprintf(os.Stderr, "Error: failed to initialize store: %v\n", err)
		os.Exit(ExitAborted)
	}
	return store
}

func exitCode(status models.ReportStatus) int {
	switch status {
	case models.CompletedReportStatus:
		return ExitCompleted
	case models.CompletedWithFailuresReportStatus:
		return ExitCompletedWithFailures
	default:
		return ExitAborted
	}
}

func printReport(rep models.RunReport) {
	fmt.Fprintf(os.Stdout, "Run %s of plan '%s': %s\n", rep.RunID, rep.PlanName, rep.Status)
	fmt.Fprintf(os.Stdout, "  tasks: %d total, %d succeeded, %d failed, %d skipped\n",
		rep.TotalTasks, rep.Succeeded, rep.Failed, rep.Skipped)
	fmt.Fprintf(os.Stdout, "  assertions: %d passed, %d failed\n", rep.PassedTotal, rep.FailedTotal)
	if rep.AbortReason != "" {
		fmt.Fprintf(os.Stdout, "  abort reason: %s\n", rep.AbortReason)
	}

	ids := make([]string, 0, len(rep.Tasks))
	for id := range rep.Tasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		tr := rep.Tasks[id]
		line := fmt.Sprintf("  - %s: %s", id, tr.Run.Status)
		if tr.Run.Error != nil {
			line += fmt.Sprintf(" (%s: %s)", tr.Run.Error.Kind, tr.Run.Error.Message)
		}
		if tr.Run.CleanupErr != "" {
			line += fmt.Sprintf(" [cleanup: %s]", tr.Run.CleanupErr)
		}
		fmt.Fprintln(os.Stdout, line)
		if tr.Result != nil {
			for _, fd := range tr.Result.FailureDetails {
				fmt.Fprintf(os.Stdout, "      %s: expected %q, got %q (%s)\n", fd.Name, fd.Expected, fd.Actual, fd.Message)
			}
		}
	}
	if rep.EndedAt != nil {
		fmt.Fprintf(os.Stdout, "  duration: %s\n", rep.EndedAt.Sub(rep.StartedAt).Round(time.Millisecond))
	}
}
