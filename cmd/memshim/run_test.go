package main

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/classicmac/memshim/guest"
	"github.com/classicmac/memshim/heap"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

func testRunOptions() runOptions {
	return runOptions{
		heapBase:       0x1000,
		heapSize:       0x1000,
		alignment:      4,
		masterPointers: 4,
		strategy:       "MinOffset",
		validate:       true,
	}
}

func runTestScript(t *testing.T, options runOptions, script string) (string, error) {
	t.Helper()

	memSize = 0x10000
	var out bytes.Buffer
	logger := slog.New(slog.NewTextHandler(io.Discard))
	err := runScript(logger, options, strings.NewReader(script), &out)
	return out.String(), err
}

func TestRunAppendScript(t *testing.T) {
	output, err := runTestScript(t, testRunOptions(), `
# append three bytes to a four byte handle
h = NewHandle 4
poke *h 0x01 0x02 0x03 0x04
poke 0x8000 0xAA 0xBB 0xCC
PtrAndHand 0x8000 h 3
GetHandleSize h
peek *h 7
DisposeHandle h
`)
	require.NoError(t, err)
	require.Equal(t, strings.Join([]string{
		"NewHandle => 00001000",
		"PtrAndHand => 00000000",
		"GetHandleSize => 00000007",
		"00001010: 01 02 03 04 AA BB CC",
		"DisposeHandle => void",
		"",
	}, "\n"), output)
}

func TestRunReportsFailureStatus(t *testing.T) {
	options := testRunOptions()
	options.heapSize = 0x40

	output, err := runTestScript(t, options, `
h = NewHandle 4
p = NewPtr 0x2C
PtrAndHand 0x8000 h 3
MemError
DisposePtr p
DisposeHandle h
`)
	require.NoError(t, err)
	require.Contains(t, output, "PtrAndHand => FFFFFF94")
	require.Contains(t, output, "MemError => FFFFFF94")
}

func TestRunDump(t *testing.T) {
	options := testRunOptions()
	options.dump = true

	output, err := runTestScript(t, options, "p = NewPtr 8\nDisposePtr p\n")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(output), "\n")
	var dumped map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &dumped))
	require.Equal(t, "00001000", dumped["Base"])
	require.Equal(t, "MinOffset", dumped["Strategy"])
}

func TestRunFailures(t *testing.T) {
	tests := []struct {
		name   string
		script string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "unknown variable",
			script: "GetHandleSize nope\n",
			check:  func(t *testing.T, err error) { require.ErrorContains(t, err, "line 1") },
		},
		{
			name:   "void assignment",
			script: "x = HLock 0\n",
			check:  func(t *testing.T, err error) { require.ErrorContains(t, err, "returns nothing") },
		},
		{
			name:   "untracked handle",
			script: "\n\nDisposeHandle 0x1234\n",
			check: func(t *testing.T, err error) {
				require.True(t, errors.Is(err, heap.ErrUntrackedBlock))
				require.ErrorContains(t, err, "line 3")
			},
		},
		{
			name:   "access fault",
			script: "peek 0xFFFF0000 4\n",
			check:  func(t *testing.T, err error) { require.True(t, errors.Is(err, guest.ErrAccessFault)) },
		},
		{
			name:   "leaked block",
			script: "NewPtr 8\n",
			check:  func(t *testing.T, err error) { require.ErrorContains(t, err, "not disposed") },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runTestScript(t, testRunOptions(), tt.script)
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestRunRejectsBadOptions(t *testing.T) {
	options := testRunOptions()
	options.strategy = "Fastest"
	_, err := runTestScript(t, options, "")
	require.Error(t, err)

	options = testRunOptions()
	options.heapSize = 0x10000
	_, err = runTestScript(t, options, "")
	require.Error(t, err)
}

func TestRunTraps(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runTraps(&out))
	require.Contains(t, out.String(), "NewHandle\n")
	require.Contains(t, out.String(), "BlockMove\n")
}
