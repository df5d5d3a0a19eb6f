package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/aristath/appforge/internal/config"
	"github.com/aristath/appforge/internal/events"
	"github.com/aristath/appforge/internal/orchestrator"
	"github.com/aristath/appforge/internal/persistence"
	"github.com/aristath/appforge/internal/scheduler"
	"github.com/aristath/appforge/internal/tools"
	"github.com/aristath/appforge/internal/tui"
	"github.com/aristath/appforge/internal/workspace"
)

func main() {
	headless := flag.Bool("headless", false, "run without the TUI and print a summary when the run finishes")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <plan.json>\n\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	planPath := flag.Arg(0)

	// Signal-aware context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadDefault()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error getting home directory: %v\n", err)
		os.Exit(1)
	}
	globalPath := filepath.Join(homeDir, ".appforge", "config.json")
	projectPath := filepath.Join(".appforge", "config.json")

	planData, err := os.ReadFile(planPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading plan: %v\n", err)
		os.Exit(1)
	}
	plan, err := scheduler.ParsePlan(planData, cfg.Defaults.Settings())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing plan: %v\n", err)
		os.Exit(1)
	}

	store, err := persistence.NewSQLiteStore(ctx, cfg.DatabasePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening run database: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	pm := tools.NewProcessManager()
	registry, err := buildRegistry(cfg.Tools, pm)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building tool registry: %v\n", err)
		os.Exit(1)
	}

	bus := events.NewEventBus()
	defer bus.Close()

	controller := orchestrator.NewController(orchestrator.ControllerConfig{
		Resolver:   registry,
		Bus:        bus,
		Store:      store,
		Breakers:   orchestrator.NewCircuitBreakerRegistry(),
		Workspaces: workspace.NewManager(workspace.ManagerConfig{Root: cfg.WorkspaceDir}),
		Delay:      orchestrator.ExponentialDelay(orchestrator.DefaultRetryConfig()),
	})

	runID, err := controller.Start(ctx, plan)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error starting run: %v\n", err)
		os.Exit(1)
	}

	if *headless {
		runHeadless(ctx, controller, pm, runID)
		return
	}
	runTUI(ctx, stop, controller, pm, bus, cfg, globalPath, projectPath, runID)
}

// buildRegistry creates the tool registry from configuration. Each configured
// tool is registered under its capability name.
func buildRegistry(toolCfgs map[string]config.ToolConfig, pm *tools.ProcessManager) (*tools.Registry, error) {
	registry := tools.NewRegistry()
	for name, tc := range toolCfgs {
		inv, err := tools.New(tools.Config{
			Type:    tc.Type,
			Command: tc.Command,
			Args:    tc.Args,
		}, pm)
		if err != nil {
			return nil, fmt.Errorf("tool %q: %w", name, err)
		}
		registry.Register(name, inv)
	}
	return registry, nil
}

// runHeadless waits for the run to finish and prints a summary. A shutdown
// signal cancels the run and still reports what happened.
func runHeadless(ctx context.Context, controller *orchestrator.Controller, pm *tools.ProcessManager, runID string) {
	snap, err := controller.WaitForCompletion(ctx, runID, 0)
	if err != nil {
		log.Printf("Shutdown signal received, cancelling run %s", runID)
		if cerr := controller.Cancel(runID); cerr != nil {
			log.Printf("Error cancelling run: %v", cerr)
		}
		if kerr := pm.KillAll(); kerr != nil {
			log.Printf("Error killing subprocesses: %v", kerr)
		}

		waitCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		snap, err = controller.WaitForCompletion(waitCtx, runID, 0)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Run did not settle after cancellation: %v\n", err)
			os.Exit(1)
		}
	}

	printSummary(snap)
	if snap.Status != scheduler.RunSuccess {
		os.Exit(1)
	}
}

// printSummary writes the run outcome and a line per task to stdout.
func printSummary(snap scheduler.RunSnapshot) {
	fmt.Printf("Run %s: %s\n", snap.ID, snap.Status)
	if snap.Error != "" {
		fmt.Printf("  error: %s\n", snap.Error)
	}
	for _, task := range snap.Tasks {
		line := fmt.Sprintf("  %-20s %-12s attempts=%d", task.ID, task.Status, task.Attempts)
		if task.Error != "" {
			line += "  " + task.Error
		}
		fmt.Println(line)
	}
}

// runTUI drives the interactive front end until the user quits or a shutdown
// signal arrives.
func runTUI(ctx context.Context, stop context.CancelFunc, controller *orchestrator.Controller, pm *tools.ProcessManager, bus *events.EventBus, cfg *config.Config, globalPath, projectPath, runID string) {
	model := tui.New(bus, cfg, globalPath, projectPath)
	p := tea.NewProgram(model, tea.WithAltScreen())

	errChan := make(chan error, 1)
	go func() {
		_, err := p.Run()
		errChan <- err
	}()

	select {
	case err := <-errChan:
		// Normal TUI exit: the user quit, so stop the run and its tools
		if cerr := controller.Cancel(runID); cerr != nil {
			log.Printf("Error cancelling run: %v", cerr)
		}
		if kerr := pm.KillAll(); kerr != nil {
			log.Printf("Error killing subprocesses: %v", kerr)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

	case <-ctx.Done():
		// Signal received; restore default handling so a second Ctrl+C
		// force-exits
		stop()

		log.Println("Shutdown signal received, cleaning up...")
		if err := controller.Cancel(runID); err != nil {
			log.Printf("Error cancelling run: %v", err)
		}
		if err := pm.KillAll(); err != nil {
			log.Printf("Error killing subprocesses: %v", err)
		}
		p.Quit()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		select {
		case err := <-errChan:
			if err != nil {
				log.Printf("TUI exit error: %v", err)
			}
		case <-shutdownCtx.Done():
			log.Println("Shutdown timeout exceeded, forcing exit")
		}
	}

	log.Println("Shutdown complete")
}
