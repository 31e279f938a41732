package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/exp/slog"
)

var (
	// Global flags
	verbose bool
	memSize uint32
)

var rootCmd = &cobra.Command{
	Use:   "memshim",
	Short: "Run classic Mac Memory Manager traps against an emulated heap",
	Long: `memshim boots a flat big-endian guest address space, carves a heap zone
out of it and runs Memory Manager trap scripts against it. It is meant for
exercising the heap and the trap table without a full emulator.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log every heap operation")
	rootCmd.PersistentFlags().Uint32Var(&memSize, "mem-size", 0x100000, "Size of the guest address space in bytes")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v\n", err)
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.HandlerOptions{Level: level}.NewTextHandler(os.Stderr))
}

// printError prints an error message
func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format, args...)
}
