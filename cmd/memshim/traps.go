package main

import (
	"fmt"
	"io"
	"os"

	"github.com/classicmac/memshim/shim"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newTrapsCmd())
}

func newTrapsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "traps",
		Short: "List every trap name the shim table answers to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTraps(os.Stdout)
		},
	}
}

func runTraps(out io.Writer) error {
	table, err := shim.NewTable(shim.MemoryManager()...)
	if err != nil {
		return err
	}

	for _, name := range table.Names() {
		fmt.Fprintln(out, name)
	}
	return nil
}
