package main

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/Veraticus/spice-dash/internal/cli"
	"github.com/Veraticus/spice-dash/internal/data"
	"github.com/Veraticus/spice-dash/internal/warmup"
	"github.com/spf13/cobra"
)

// warmTasks is the number of aggregators the orchestrator initializes.
const warmTasks = 4

func warmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "warm",
		Short: "Load the datasets and build the cache",
		Long: `Load the raw datasets, build every derived artifact and the precomputed
aggregator views. When a complete cache already exists for the configured
row count it is loaded instead.`,
		RunE: runWarm,
	}
}

func runWarm(cmd *cobra.Command, _ []string) error {
	handler := cli.NewInterruptHandler(os.Stdout)
	ctx, stop := handler.HandleInterrupts(cmd.Context())
	defer stop()

	bar := cli.NewProgress(os.Stderr, warmTasks, "Warming aggregators")
	var mu sync.Mutex
	onDone := func(r warmup.Result) {
		mu.Lock()
		defer mu.Unlock()
		_ = bar.Add(1)
	}

	m, err := startManager(ctx, onDone)
	if err != nil {
		if handler.WasInterrupted() {
			return nil
		}
		return err
	}
	defer data.Shutdown()
	_ = bar.Finish()
	fmt.Println()

	if m.FromCache() {
		fmt.Println(cli.FormatSuccess("Loaded complete cache from " + m.Store().Dir()))
	} else {
		fmt.Println(cli.FormatSuccess("Built cache in " + m.Store().Dir()))
	}
	if degraded := m.Degraded(); len(degraded) > 0 {
		fmt.Println(cli.FormatWarning("Degraded aggregators (their views are empty until the next warm): " + strings.Join(degraded, ", ")))
	}
	return nil
}
