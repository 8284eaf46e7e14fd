package cmd

import (
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

var runCmd = &cobra.Command{
	Use:   "run [scenario.yaml]",
	Short: "Run a scenario and print the dumps.",
	Long: "`run` executes the scenario file, or the built-in locality " +
		"scenario when no file is given.",
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

		err = sim.runner.Run(cmd.Context(), s)
		if err != nil {
			atexit.Fatalf("Error running %q: %v", s.Name, err)
		}

		err = sim.close()
		if err != nil {
			atexit.Fatalf("Error closing trace database: %v", err)
		}
	},
}

func init() {
	addMachineFlags(runCmd)
	rootCmd.AddCommand(runCmd)
}
