package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/joshharrison/critpath/internal/config"
	"github.com/joshharrison/critpath/internal/cpm"
	"github.com/joshharrison/critpath/internal/project"
	"github.com/joshharrison/critpath/internal/state"
	"github.com/joshharrison/critpath/internal/ui"
	"github.com/joshharrison/critpath/internal/validate"
)

var (
	flagConfig   string
	flagJSON     bool
	flagLogLevel string
	flagOutput   string
	flagFilter   string

	cfg *config.Config
	log *ui.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "critpath",
		Short: "Critical path scheduling for project plans",
		Long: `Critpath reads a project plan (tasks, durations and typed dependencies),
computes earliest and latest dates with the critical path method, and
reports slack, the critical path and plan issues.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if flagConfig != "" {
				cfg, err = config.LoadConfig(flagConfig)
			} else {
				cfg, err = config.LoadConfigFromDir(".")
			}
			if err != nil {
				return err
			}
			cfg.MergeWithFlags(flagLogLevel, "")
			if err := cfg.Validate(); err != nil {
				return err
			}
			log = ui.NewLogger(os.Stderr, ui.ParseLevel(cfg.LogLevel))
			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (default: ./"+config.FileName+")")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Machine-readable JSON output")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: trace, debug, info, warn, error")

	rootCmd.AddCommand(scheduleCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(graphCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(shiftCmd())
	rootCmd.AddCommand(workerCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(baselineCmd())
	rootCmd.AddCommand(inferDepsCmd())
	rootCmd.AddCommand(explainCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadProject reads a project file, fills config defaults and migrates it
// to the current schema. The returned issues describe what migration did.
func loadProject(path string) (*project.Project, []validate.Issue, error) {
	p, err := project.Load(path)
	if err != nil {
		return nil, nil, err
	}
	cfg.ApplyDefaults(p)

	rep := validate.Migrate(p, time.Now())
	for _, is := range rep.Issues {
		log.Debugf("migrate %s: %s", is.Sev, is.Msg)
	}
	if !rep.OK {
		var msgs []string
		for _, is := range rep.Issues {
			if is.Sev == validate.Critical {
				msgs = append(msgs, is.Msg)
			}
		}
		return nil, rep.Issues, fmt.Errorf("load %s: %s", path, strings.Join(msgs, "; "))
	}
	if rep.Migrated {
		log.Infof("migrated %s to schema %s", path, project.SchemaVersion)
	}
	return p, rep.Issues, nil
}

// computeProject loads, schedules and validates a project file.
func computeProject(path string) (*project.Project, *cpm.Result, []validate.Issue, error) {
	p, migrated, err := loadProject(path)
	if err != nil {
		return nil, nil, nil, err
	}
	res := cpm.Compute(p)
	log.Debugf("computed %d tasks, finish day %d, status %s", len(res.Tasks), res.FinishDays, res.Status)

	issues := append(migrated, validate.Run(p, res)...)
	validate.SortBySeverity(issues)
	return p, res, issues, nil
}

// saveState caches the schedule as the last computed result.
func saveState(path string, res *cpm.Result, issues []validate.Issue) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	store := state.New(cfg.StateDir)
	err = store.Save(&state.Snapshot{
		ProjectFile: abs,
		ComputedAt:  time.Now(),
		Result:      res,
		Issues:      issues,
	})
	if err != nil {
		log.Warnf("save state: %v", err)
		return
	}
	log.Debugf("state saved to %s", store.Path())
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintf(os.Stderr, "\n🛑 %s\n", ui.Yellow("Received interrupt, shutting down..."))
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

// openBrowser opens the given URL in the default browser.
func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	default:
		cmd = exec.Command("cmd", "/c", "start", url)
	}
	cmd.Start()
}

// --- Output helpers ---

func outputJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func writeOutput(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Printf("💾 Wrote %s\n", ui.Dim(path))
	return nil
}
