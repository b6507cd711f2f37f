package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"gather-go/core"
	"gather-go/game"
	"gather-go/store"
	"gather-go/web"
)

func main() {
	var (
		configPath   = flag.String("config", "config.yaml", "path to config.yaml (written with defaults when missing)")
		scenarioPath = flag.String("scenario", "", "scenario file to plan for (overrides scenario.path)")
		dryRun       = flag.Bool("dry-run", false, "execute the plan against the in-process simulated engine")
		planOnly     = flag.Bool("plan-only", false, "stop after the plan is written")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[runner] ", log.LstdFlags|log.Lmicroseconds)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, logger, *configPath, Options{ScenarioPath: *scenarioPath, DryRun: *dryRun, PlanOnly: *planOnly})
	// os.Exit in Fatal skips deferred calls.
	stop()
	if err != nil {
		logger.Fatal(failureMessage(err))
	}
}

// failureMessage explains why a run ended without a result.
func failureMessage(err error) string {
	switch {
	case errors.Is(err, game.ErrPlanNotFound):
		return fmt.Sprintf("no plan reaches the goal: %v", err)
	case errors.Is(err, game.ErrSearchLimit):
		return fmt.Sprintf("search gave up before finding a plan: %v", err)
	default:
		return fmt.Sprintf("run failed: %v", err)
	}
}

func run(ctx context.Context, logger *log.Logger, configPath string, opts Options) error {
	cm, err := core.NewConfigManager(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	config := cm.GetConfig()

	var runs *store.RunStore
	if config.Output.DBPath != "" {
		runs, err = store.OpenRunStore(config.Output.DBPath)
		if err != nil {
			return fmt.Errorf("failed to open run index: %w", err)
		}
		defer runs.Close()
	}

	runner, err := NewRunner(cm, runs, logger)
	if err != nil {
		return err
	}

	if config.WebManager.Enabled {
		webLog := log.New(os.Stdout, "[web] ", log.LstdFlags|log.Lmicroseconds)
		hub := web.NewHub(runner, webLog)
		go hub.Run(ctx)
		runner.SetHub(hub)

		var lister web.RunLister
		if runs != nil {
			lister = runs
		}
		server := web.NewServer(hub, runner, lister, webLog)
		addr := net.JoinHostPort(config.WebManager.Host, strconv.Itoa(config.WebManager.Port))
		go func() {
			if err := server.ListenAndServe(ctx, addr); err != nil {
				webLog.Printf("server stopped: %v", err)
			}
		}()
	}

	state, err := runner.Run(ctx, opts)
	if err != nil {
		return err
	}
	logger.Printf("run %s finished: %d plan steps, cost %.0f", state.RunID, len(state.Plan), state.Cost)
	return nil
}
