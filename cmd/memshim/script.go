package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/classicmac/memshim/guest"
	"github.com/classicmac/memshim/shim"
	"github.com/cockroachdb/errors"
)

// interpreter executes trap scripts against one session. Trap arguments are written to the frame
// at the top of guest memory and read back by the handlers through shim.StackArgs, the same way an
// emulator hands them over.
type interpreter struct {
	session  *shim.Session
	table    *shim.Table
	mem      *guest.Flat
	frame    guest.Address
	vars     map[string]uint32
	out      io.Writer
	validate bool
}

func (in *interpreter) run(input io.Reader) error {
	scanner := bufio.NewScanner(input)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++

		line := scanner.Text()
		if index := strings.IndexByte(line, '#'); index >= 0 {
			line = line[:index]
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		err := in.execute(fields)
		if err != nil {
			return errors.Wrapf(err, "line %d", lineNumber)
		}

		if in.validate {
			err = in.session.Heap.Validate()
			if err != nil {
				return errors.Wrapf(err, "line %d: heap failed validation", lineNumber)
			}
		}
	}

	return scanner.Err()
}

func (in *interpreter) execute(fields []string) error {
	target := ""
	if len(fields) >= 2 && fields[1] == "=" {
		target = fields[0]
		fields = fields[2:]
		if len(fields) == 0 {
			return errors.New("assignment has no right-hand side")
		}
	}

	name, operands := fields[0], fields[1:]
	args := make([]uint32, 0, len(operands))
	for _, operand := range operands {
		value, err := in.evaluate(operand)
		if err != nil {
			return err
		}
		args = append(args, value)
	}

	switch name {
	case "poke":
		if target != "" {
			return errors.New("poke has no result")
		}
		return in.poke(args)
	case "peek":
		if target != "" {
			return errors.New("peek has no result")
		}
		return in.peek(args)
	case "validate":
		return in.session.Heap.Validate()
	}

	return in.callTrap(target, name, args)
}

func (in *interpreter) callTrap(target string, name string, args []uint32) error {
	if len(args)*4 > stackFrameSize {
		return errors.Newf("%s: too many arguments", name)
	}
	for i, arg := range args {
		err := in.mem.WriteU32(in.frame+guest.Address(i*4), arg)
		if err != nil {
			return err
		}
	}

	result, err := in.table.Call(in.session, name, shim.StackArgs{Memory: in.mem, Frame: in.frame})
	if err != nil {
		return err
	}

	fmt.Fprintf(in.out, "%s => %s\n", name, result)

	if target != "" {
		value, ok := result.Value()
		if !ok {
			return errors.Newf("%s returns nothing to assign to %s", name, target)
		}
		in.vars[target] = value
	}
	return nil
}

func (in *interpreter) poke(args []uint32) error {
	if len(args) < 1 {
		return errors.New("usage: poke addr byte...")
	}

	data := make([]byte, 0, len(args)-1)
	for _, value := range args[1:] {
		if value > 0xFF {
			return errors.Newf("%X is not a byte", value)
		}
		data = append(data, byte(value))
	}
	return in.mem.Load(args[0], data)
}

func (in *interpreter) peek(args []uint32) error {
	if len(args) != 2 {
		return errors.New("usage: peek addr count")
	}

	data, err := in.mem.Dump(args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Fprintf(in.out, "%08X: % X\n", args[0], data)
	return nil
}

// evaluate resolves a number, a variable, or *operand, the word stored at operand
func (in *interpreter) evaluate(operand string) (uint32, error) {
	if strings.HasPrefix(operand, "*") {
		addr, err := in.evaluate(operand[1:])
		if err != nil {
			return 0, err
		}
		return in.mem.ReadU32(addr)
	}

	value, err := strconv.ParseUint(operand, 0, 32)
	if err == nil {
		return uint32(value), nil
	}

	value32, ok := in.vars[operand]
	if !ok {
		return 0, errors.Newf("%q is neither a number nor a variable", operand)
	}
	return value32, nil
}
