// Package cmd provides the command-line interface of mmusim.
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

var envFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mmusim",
	Short: "mmusim simulates a four-level page table with a TLB and an L1 cache.",
	Long: `mmusim walks four-level page tables, caches translations in a ` +
		`set-associative TLB, and reads bytes through a set-associative L1 ` +
		`data cache. Settings come from MMUSIM_* environment variables, an ` +
		`optional .env file, and flags, in increasing precedence.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env",
		"Path to a .env file with MMUSIM_* settings.")
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		atexit.Exit(1)
	}
}
