package main

import (
	"io"
	"os"

	"github.com/classicmac/memshim/guest"
	"github.com/classicmac/memshim/heap"
	"github.com/classicmac/memshim/memutils/metadata"
	"github.com/classicmac/memshim/shim"
	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/spf13/cobra"
	"golang.org/x/exp/slog"
)

type runOptions struct {
	heapBase       uint32
	heapSize       uint32
	alignment      uint32
	masterPointers int
	strategy       string
	dump           bool
	validate       bool
}

var runOpts = runOptions{}

func init() {
	cmd := newRunCmd()
	cmd.Flags().Uint32Var(&runOpts.heapBase, "heap-base", 0x1000, "Guest address of the heap zone")
	cmd.Flags().Uint32Var(&runOpts.heapSize, "heap-size", 0x10000, "Size of the heap zone in bytes")
	cmd.Flags().Uint32Var(&runOpts.alignment, "alignment", heap.DefaultAlignment, "Alignment of every block, a power of two")
	cmd.Flags().IntVar(&runOpts.masterPointers, "master-pointers", heap.DefaultMasterPointers, "Master pointer cells per master block")
	cmd.Flags().StringVar(&runOpts.strategy, "strategy", metadata.AllocationStrategyMinOffset.String(), "Placement strategy: MinOffset, MinMemory, MinTime or Balanced")
	cmd.Flags().BoolVar(&runOpts.dump, "dump", false, "Print the heap map as JSON when the script ends")
	cmd.Flags().BoolVar(&runOpts.validate, "validate", false, "Validate the heap after every statement")
	rootCmd.AddCommand(cmd)
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <script>",
		Short: "Run a trap script against a fresh heap",
		Long: `The run command creates a guest address space and a heap zone inside it,
then executes the script one statement per line. Use - to read from stdin.

Statements:
  [var =] Trap arg...    call a trap; arguments are pushed on the guest stack
  poke addr byte...      write bytes into guest memory
  peek addr count        print bytes from guest memory
  validate               check every heap invariant

Arguments are numbers (0x prefix for hex), variables, or *arg to read the
32-bit word at arg.

Example:
  h = NewHandle 4
  poke *h 0x01 0x02 0x03 0x04
  poke 0x8000 0xAA 0xBB 0xCC
  PtrAndHand 0x8000 h 3
  peek *h 7
  DisposeHandle h`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := cmd.InOrStdin()
			if args[0] != "-" {
				file, err := os.Open(args[0])
				if err != nil {
					return errors.Wrap(err, "failed to open script")
				}
				defer file.Close()
				input = file
			}

			return runScript(newLogger(), runOpts, input, cmd.OutOrStdout())
		},
	}
	return cmd
}

// stackFrameSize is the space reserved at the top of guest memory for trap arguments
const stackFrameSize = 64

func runScript(logger *slog.Logger, options runOptions, input io.Reader, out io.Writer) error {
	strategy, ok := metadata.ParseAllocationStrategy(options.strategy)
	if !ok {
		return errors.Newf("unknown strategy %q", options.strategy)
	}
	if memSize < stackFrameSize {
		return errors.Newf("the guest address space must hold at least %d bytes", stackFrameSize)
	}

	frame := guest.Address(memSize - stackFrameSize)
	if uint64(options.heapBase)+uint64(options.heapSize) > uint64(frame) {
		return errors.Newf("the heap zone %08X+%X does not fit below the argument frame at %08X", options.heapBase, options.heapSize, frame)
	}

	mem := guest.NewFlat(memSize)
	session, err := shim.NewSession(logger, mem, heap.CreateOptions{
		Flags:          heap.CreateExternallySynchronized,
		Base:           options.heapBase,
		Size:           options.heapSize,
		Alignment:      options.alignment,
		MasterPointers: options.masterPointers,
		Strategy:       strategy,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create the heap")
	}

	table, err := shim.NewTable(shim.MemoryManager()...)
	if err != nil {
		return err
	}

	interp := &interpreter{
		session:  session,
		table:    table,
		mem:      mem,
		frame:    frame,
		vars:     make(map[string]uint32),
		out:      out,
		validate: options.validate,
	}
	err = interp.run(input)
	if err != nil {
		return err
	}

	if options.dump {
		writer := jwriter.NewWriter()
		session.Heap.PrintDetailedMap(&writer)
		if err := writer.Error(); err != nil {
			return errors.Wrap(err, "failed to write the heap map")
		}
		_, err = out.Write(append(writer.Bytes(), '\n'))
		if err != nil {
			return err
		}
	}

	return session.Close()
}
