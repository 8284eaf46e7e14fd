package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/mmusim/monitoring"
)

var serveCmd = &cobra.Command{
	Use:   "serve [scenario.yaml]",
	Short: "Run a scenario and serve the machine state over HTTP.",
	Long: "`serve` starts the monitor, runs the scenario, and keeps serving " +
		"until interrupted.",
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		c, err := loadConfig(cmd)
		if err != nil {
			atexit.Fatalf("Error: %v", err)
		}

		s, err := loadScenario(args)
		if err != nil {
			atexit.Fatalf("Error loading scenario: %v", err)
		}

		sim, err := newSimulation(c, cmd.OutOrStdout())
		if err != nil {
			atexit.Fatalf("Error: %v", err)
		}

		monitor := monitoring.
			NewMonitor(sim.machine, sim.runner.Stats(), sim.lock).
			WithPortNumber(c.MonitorPort)

		url, err := monitor.StartServer()
		if err != nil {
			atexit.Fatalf("Error starting monitor: %v", err)
		}

		if c.OpenBrowser {
			err = browser.OpenURL(url)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Cannot open browser: %v\n", err)
			}
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		err = sim.runner.Run(ctx, s)
		if err != nil && ctx.Err() == nil {
			atexit.Fatalf("Error running %q: %v", s.Name, err)
		}

		fmt.Fprintln(os.Stderr, "Scenario finished, press Ctrl-C to stop.")
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(
			context.Background(), 5*time.Second)
		defer cancel()

		err = monitor.Shutdown(shutdownCtx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error stopping monitor: %v\n", err)
		}

		err = sim.close()
		if err != nil {
			atexit.Fatalf("Error closing trace database: %v", err)
		}
	},
}

func init() {
	addMachineFlags(serveCmd)
	serveCmd.Flags().Int("port", 0, "Port of the monitor; 0 picks a free one.")
	serveCmd.Flags().Bool("open", false, "Open the monitor in a browser.")
	rootCmd.AddCommand(serveCmd)
}
