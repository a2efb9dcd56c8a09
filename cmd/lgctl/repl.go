package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	flag "github.com/spf13/pflag"

	"github.com/hyperpolymath/lithoglyph-sub001/pkg/blockfile"
	"github.com/hyperpolymath/lithoglyph-sub001/pkg/bridge"
	"github.com/hyperpolymath/lithoglyph-sub001/pkg/fs"
	"github.com/hyperpolymath/lithoglyph-sub001/pkg/txn"
)

// replSession holds interactive state across commands: the open database
// handle and, if a transaction is in progress, its handle.
type replSession struct {
	out, errOut      io.Writer
	bridge           *bridge.Bridge
	db               bridge.DBHandle
	dbOpen           bool
	tx               bridge.TxnHandle
	txOpen           bool
	liner            *liner.State
	journalPageLimit uint64
}

func cmdRepl(out, errOut io.Writer, b *bridge.Bridge, cfg Config, workDir string, args []string) int {
	if hasHelpFlag(args) {
		fprintln(out, "Usage: lgctl repl [--db=path]")
		fprintln(out, "")
		fprintln(out, "Starts an interactive session. Type 'help' for available commands.")

		return 0
	}

	flagSet := flag.NewFlagSet("repl", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)

	if err := flagSet.Parse(args); err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	r := &replSession{out: out, errOut: errOut, bridge: b, journalPageLimit: uint64(cfg.JournalPageLimit)}

	if cfg.DBPath != "" {
		path := resolvePath(workDir, cfg.DBPath)

		h, err := b.Open(path, blockfile.Options{FS: fs.NewReal()})
		if err != nil {
			fprintln(errOut, "error:", err)

			return 1
		}

		r.db, r.dbOpen = h, true
	}

	if err := r.run(); err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	return 0
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".lgctl_history")
}

func (r *replSession) run() error {
	r.liner = liner.NewLiner()
	defer r.liner.Close()

	r.liner.SetCtrlCAborts(true)
	r.liner.SetCompleter(r.completer)

	if f, err := os.Open(historyFile()); err == nil {
		r.liner.ReadHistory(f) //nolint:errcheck // best-effort history load
		f.Close()
	}

	fmt.Fprintln(r.out, "lgctl - block storage engine session")
	fmt.Fprintln(r.out, "Type 'help' for available commands.")
	fmt.Fprintln(r.out)

	for {
		line, err := r.liner.Prompt("lgctl> ")
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				fmt.Fprintln(r.out, "\nbye")

				break
			}

			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		r.liner.AppendHistory(line)

		if r.dispatch(line) {
			break
		}
	}

	r.saveHistory()

	return nil
}

func (r *replSession) saveHistory() {
	path := historyFile()
	if path == "" {
		return
	}

	f, err := os.Create(path) //nolint:gosec // fixed path under the user's home directory
	if err != nil {
		return
	}
	defer f.Close()

	r.liner.WriteHistory(f) //nolint:errcheck // best-effort history save
}

func (r *replSession) completer(line string) []string {
	commands := []string{"open", "begin", "apply", "commit", "abort", "show", "render-block", "render-journal", "help", "exit", "quit"}

	var matches []string

	for _, c := range commands {
		if strings.HasPrefix(c, line) {
			matches = append(matches, c)
		}
	}

	return matches
}

// dispatch runs one REPL line and returns true if the session should end.
func (r *replSession) dispatch(line string) bool {
	parts := strings.Fields(line)
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "exit", "quit", "q":
		fmt.Fprintln(r.out, "bye")

		return true

	case "help", "?":
		r.printHelp()

	case "open":
		r.cmdOpen(args)

	case "begin":
		r.cmdBegin(args)

	case "apply":
		r.cmdApply(args)

	case "commit":
		r.cmdCommit()

	case "abort":
		r.cmdAbort()

	case "show":
		r.cmdShow()

	case "render-block":
		r.cmdRenderBlock(args)

	case "render-journal":
		r.cmdRenderJournal(args)

	default:
		fmt.Fprintln(r.errOut, "unknown command:", cmd, "(try 'help')")
	}

	return false
}

func (r *replSession) printHelp() {
	fmt.Fprintln(r.out, "Commands:")
	fmt.Fprintln(r.out, "  open <path>             Open or create a database file")
	fmt.Fprintln(r.out, "  begin [ro|rw]           Begin a transaction (default rw)")
	fmt.Fprintln(r.out, "  apply <text>            Buffer an insert on the open transaction")
	fmt.Fprintln(r.out, "  commit                  Commit the open transaction")
	fmt.Fprintln(r.out, "  abort                   Abort the open transaction")
	fmt.Fprintln(r.out, "  show                    Print the schema introspection blob")
	fmt.Fprintln(r.out, "  render-block <id>       Print one block's introspection view")
	fmt.Fprintln(r.out, "  render-journal [since]  Print journal entries since sequence")
	fmt.Fprintln(r.out, "  exit | quit             Leave the session")
}

func (r *replSession) cmdOpen(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(r.errOut, "usage: open <path>")

		return
	}

	h, err := r.bridge.Open(args[0], blockfile.Options{FS: fs.NewReal()})
	if err != nil {
		fmt.Fprintln(r.errOut, "error:", err)

		return
	}

	r.db, r.dbOpen = h, true
	fmt.Fprintln(r.out, "opened", args[0])
}

func (r *replSession) requireDB() bool {
	if !r.dbOpen {
		fmt.Fprintln(r.errOut, "error: no database open, use 'open <path>' first")

		return false
	}

	return true
}

func (r *replSession) cmdBegin(args []string) {
	if !r.requireDB() {
		return
	}

	mode := txn.ReadWrite

	if len(args) == 1 && args[0] == "ro" {
		mode = txn.ReadOnly
	}

	h, err := r.bridge.Begin(r.db, mode)
	if err != nil {
		fmt.Fprintln(r.errOut, "error:", err)

		return
	}

	r.tx, r.txOpen = h, true
	fmt.Fprintln(r.out, "transaction started")
}

func (r *replSession) requireTx() bool {
	if !r.txOpen {
		fmt.Fprintln(r.errOut, "error: no transaction open, use 'begin' first")

		return false
	}

	return true
}

func (r *replSession) cmdApply(args []string) {
	if !r.requireTx() {
		return
	}

	if len(args) == 0 {
		fmt.Fprintln(r.errOut, "usage: apply <text>")

		return
	}

	res, err := r.bridge.Apply(r.tx, []byte(strings.Join(args, " ")))
	if err != nil {
		fmt.Fprintln(r.errOut, "error:", err)

		return
	}

	fmt.Fprintln(r.out, "block_id", res.BlockID)
}

func (r *replSession) cmdCommit() {
	if !r.requireTx() {
		return
	}

	if err := r.bridge.Commit(r.tx); err != nil {
		fmt.Fprintln(r.errOut, "error:", err)
	}

	r.txOpen = false
}

func (r *replSession) cmdAbort() {
	if !r.requireTx() {
		return
	}

	if err := r.bridge.Abort(r.tx); err != nil {
		fmt.Fprintln(r.errOut, "error:", err)
	}

	r.txOpen = false
}

func (r *replSession) cmdShow() {
	if !r.requireDB() {
		return
	}

	blob, err := r.bridge.IntrospectSchema(r.db)
	if err != nil {
		fmt.Fprintln(r.errOut, "error:", err)

		return
	}

	fmt.Fprintln(r.out, string(blob))
}

func (r *replSession) cmdRenderBlock(args []string) {
	if !r.requireDB() {
		return
	}

	if len(args) != 1 {
		fmt.Fprintln(r.errOut, "usage: render-block <id>")

		return
	}

	id, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		fmt.Fprintln(r.errOut, "error: invalid block id:", err)

		return
	}

	blob, err := r.bridge.RenderBlock(r.db, id)
	if err != nil {
		fmt.Fprintln(r.errOut, "error:", err)

		return
	}

	fmt.Fprintln(r.out, string(blob))
}

func (r *replSession) cmdRenderJournal(args []string) {
	if !r.requireDB() {
		return
	}

	var since uint64

	if len(args) == 1 {
		v, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			fmt.Fprintln(r.errOut, "error: invalid sequence:", err)

			return
		}

		since = v
	}

	blob, err := r.bridge.RenderJournal(r.db, since, r.journalPageLimit)
	if err != nil {
		fmt.Fprintln(r.errOut, "error:", err)

		return
	}

	fmt.Fprintln(r.out, string(blob))
}
