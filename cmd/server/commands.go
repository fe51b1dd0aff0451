package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"dronewatch/internal/reconcile"
)

var (
	noScheduler bool

	rootCmd = &cobra.Command{
		Use:          "dronewatch",
		Short:        "Detects drones inside the no-fly zone and records their owners",
		SilenceUsage: true,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the reconciliation scheduler",
		RunE:  runServe,
	}

	workerCmd = &cobra.Command{
		Use:   "worker",
		Short: "Run the scheduler and outbox relay without the HTTP API",
		RunE:  runWorker,
	}

	reconcileCmd = &cobra.Command{
		Use:   "reconcile",
		Short: "Run a single reconciliation tick and print its result",
		RunE:  runReconcile,
	}
)

func init() {
	serveCmd.Flags().BoolVar(&noScheduler, "no-scheduler", false, "serve the API only; ticks run in a separate worker")
	rootCmd.AddCommand(serveCmd, workerCmd, reconcileCmd)
	rootCmd.RunE = runServe
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	return a.serve(ctx, !noScheduler)
}

func runWorker(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	return a.work(ctx)
}

func runReconcile(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	res, err := a.scheduler.RunOnce(ctx)
	if err != nil {
		return fmt.Errorf("run reconcile tick: %w", err)
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return err
	}
	if res.Outcome != reconcile.OutcomeCompleted {
		return fmt.Errorf("reconcile tick %s", res.Outcome)
	}
	return nil
}
