package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/natefinch/atomic"
	"github.com/peterh/liner"

	internalhealth "github.com/srediag/cosim-shm/internal/health"
	"github.com/srediag/cosim-shm/pkg/shm"
)

var commands = []string{
	"info", "segments", "touch", "peek",
	"read8", "read16", "read32", "read64",
	"poke8", "poke16", "poke32", "poke64",
	"fill", "dump", "refresh", "help", "quit",
}

// REPL is the interactive command loop.
type REPL struct {
	region *shm.Region
	out    io.Writer
	liner  *liner.State
}

// historyFile returns the path to the history file.
func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".shmctl_history")
}

// Run starts the REPL loop.
func (r *REPL) Run() error {
	r.liner = liner.NewLiner()
	defer r.liner.Close()

	r.liner.SetCtrlCAborts(true)
	r.liner.SetCompleter(func(line string) []string {
		var out []string
		for _, c := range commands {
			if strings.HasPrefix(c, strings.ToLower(line)) {
				out = append(out, c)
			}
		}
		return out
	})
	if f, err := os.Open(historyFile()); err == nil {
		_, _ = r.liner.ReadHistory(f)
		_ = f.Close()
	}
	defer r.saveHistory()

	fmt.Fprintf(r.out, "shmctl - %s (%s, %d bytes, %s)\n", r.region.Name(), r.region.Path(), r.region.Size(), r.region.Endianness())
	fmt.Fprintln(r.out, "Type 'help' for available commands.")

	for {
		line, err := r.liner.Prompt("shmctl> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r.liner.AppendHistory(line)
		if r.Exec(line) {
			return nil
		}
	}
}

func (r *REPL) saveHistory() {
	if path := historyFile(); path != "" {
		if f, err := os.Create(path); err == nil {
			_, _ = r.liner.WriteHistory(f)
			_ = f.Close()
		}
	}
}

// Exec runs one command line and reports whether the REPL should exit.
func (r *REPL) Exec(line string) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false
	}
	cmd, args := strings.ToLower(parts[0]), parts[1:]

	var err error
	switch cmd {
	case "exit", "quit", "q":
		return true
	case "help", "?":
		r.printHelp()
	case "info":
		r.cmdInfo()
	case "segments", "seg":
		shm.DebugRegionDetail(r.out, r.region)
	case "touch":
		err = r.cmdTouch(args)
	case "peek":
		err = r.cmdPeek(args)
	case "read8", "read16", "read32", "read64":
		err = r.cmdRead(cmd, args)
	case "poke8", "poke16", "poke32", "poke64":
		err = r.cmdPoke(cmd, args)
	case "fill":
		err = r.cmdFill(args)
	case "dump":
		err = r.cmdDump(args)
	case "refresh":
		err = r.region.RefreshRegistrations()
	default:
		err = fmt.Errorf("unknown command: %s (type 'help' for commands)", cmd)
	}
	if err != nil {
		fmt.Fprintln(r.out, "error:", err)
	}
	return false
}

func (r *REPL) printHelp() {
	fmt.Fprint(r.out, `Commands:
  info                        Show region info
  segments                    Show the segment table
  touch <i>                   Materialize segment i
  peek <off> [n]              Hex dump n bytes (default 64)
  read{8,16,32,64} <off>      Read a word
  poke{8,16,32,64} <off> <v>  Write a word
  fill <off> <n> <byte>       Fill n bytes
  dump <file> [off n]         Write a raw image atomically
  refresh                     Drop cached registration points
  quit                        Exit
`)
}

func (r *REPL) cmdInfo() {
	reg := r.region
	fmt.Fprintf(r.out, "name:       %s\n", reg.Name())
	fmt.Fprintf(r.out, "id:         %s\n", reg.ID())
	fmt.Fprintf(r.out, "path:       %s\n", reg.Path())
	fmt.Fprintf(r.out, "offset:     %d\n", reg.Offset())
	fmt.Fprintf(r.out, "size:       %d\n", reg.Size())
	fmt.Fprintf(r.out, "endianness: %s\n", reg.Endianness())
	fmt.Fprintf(r.out, "segments:   %d x %d\n", reg.Segments().Count(), reg.Segments().SegmentSize())
	fmt.Fprintf(r.out, "bases:      %#x\n", reg.Invalidator().Registrations())
	if free, err := internalhealth.FreeSpace(reg.Path()); err == nil {
		fmt.Fprintf(r.out, "fs free:    %d\n", free)
	}
}

func (r *REPL) cmdTouch(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: touch <i>")
	}
	i, err := strconv.Atoi(args[0])
	if err != nil {
		return err
	}
	if i < 0 || i >= r.region.Segments().Count() {
		return fmt.Errorf("segment %d out of range [0, %d)", i, r.region.Segments().Count())
	}
	fmt.Fprintf(r.out, "segment %d at %p\n", i, r.region.Touch(i))
	return nil
}

func (r *REPL) cmdPeek(args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return errors.New("usage: peek <off> [n]")
	}
	n := uint64(64)
	if len(args) == 2 {
		var err error
		if n, err = parseUint(args[1]); err != nil {
			return err
		}
	}
	off, err := r.span(args[0], n)
	if err != nil {
		return err
	}
	return shm.Dump(r.out, r.region, off, n)
}

func widthOf(cmd string) uint64 {
	switch {
	case strings.HasSuffix(cmd, "16"):
		return 2
	case strings.HasSuffix(cmd, "32"):
		return 4
	case strings.HasSuffix(cmd, "64"):
		return 8
	}
	return 1
}

func (r *REPL) cmdRead(cmd string, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: %s <off>", cmd)
	}
	width := widthOf(cmd)
	off, err := r.span(args[0], width)
	if err != nil {
		return err
	}
	var v uint64
	switch width {
	case 1:
		v = uint64(r.region.Read8(off))
	case 2:
		v = uint64(r.region.Read16(off))
	case 4:
		v = uint64(r.region.Read32(off))
	default:
		v = r.region.Read64(off)
	}
	fmt.Fprintf(r.out, "%#x\n", v)
	return nil
}

func (r *REPL) cmdPoke(cmd string, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: %s <off> <v>", cmd)
	}
	width := widthOf(cmd)
	off, err := r.span(args[0], width)
	if err != nil {
		return err
	}
	v, err := strconv.ParseUint(args[1], 0, int(width*8))
	if err != nil {
		return err
	}
	switch width {
	case 1:
		r.region.Write8(off, uint8(v))
	case 2:
		r.region.Write16(off, uint16(v))
	case 4:
		r.region.Write32(off, uint32(v))
	default:
		r.region.Write64(off, v)
	}
	return nil
}

func (r *REPL) cmdFill(args []string) error {
	if len(args) != 3 {
		return errors.New("usage: fill <off> <n> <byte>")
	}
	n, err := parseUint(args[1])
	if err != nil {
		return err
	}
	off, err := r.span(args[0], n)
	if err != nil {
		return err
	}
	b, err := strconv.ParseUint(args[2], 0, 8)
	if err != nil {
		return err
	}
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = byte(b)
	}
	r.region.WriteBytes(off, buf)
	return nil
}

func (r *REPL) cmdDump(args []string) error {
	if len(args) != 1 && len(args) != 3 {
		return errors.New("usage: dump <file> [off n]")
	}
	off, n := uint64(0), r.region.Size()
	if len(args) == 3 {
		var err error
		if n, err = parseUint(args[2]); err != nil {
			return err
		}
		if off, err = r.span(args[1], n); err != nil {
			return err
		}
	}
	data := r.region.ReadBytes(off, int(n))
	if err := atomic.WriteFile(args[0], bytes.NewReader(data)); err != nil {
		return err
	}
	fmt.Fprintf(r.out, "wrote %d bytes to %s\n", n, args[0])
	return nil
}

// span parses an offset and checks that [off, off+n) lies within the region.
// The region itself performs no bounds checks.
func (r *REPL) span(s string, n uint64) (uint64, error) {
	off, err := parseUint(s)
	if err != nil {
		return 0, err
	}
	if off > r.region.Size() || n > r.region.Size()-off {
		return 0, fmt.Errorf("range [%#x, %#x) outside region of %#x bytes", off, off+n, r.region.Size())
	}
	return off, nil
}

func parseUint(s string) (uint64, error) {
	return strconv.ParseUint(s, 0, 64)
}
