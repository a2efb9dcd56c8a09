// Command lgctl is the operator-facing CLI for the block storage engine:
// open/create a database, drive transactions, and render the
// introspection blobs spec.md §4.4 defines (render_block, render_journal,
// introspect_schema) as terminal output. introspect_constraints has no
// lgctl command.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/hyperpolymath/lithoglyph-sub001/pkg/bridge"
)

func main() {
	os.Exit(Run(os.Stdin, os.Stdout, os.Stderr, os.Args, os.Environ()))
}

// Run is lgctl's entry point, split out from main for testability the way
// the teacher's internal/cli.Run is.
func Run(_ io.Reader, out, errOut io.Writer, args []string, environ []string) int {
	globalFlags := flag.NewFlagSet("lgctl", flag.ContinueOnError)
	globalFlags.SetInterspersed(false)
	globalFlags.Usage = func() {}
	globalFlags.SetOutput(io.Discard)

	flagHelp := globalFlags.BoolP("help", "h", false, "Show help")
	flagCwd := globalFlags.StringP("cwd", "C", "", "Run as if started in `dir`")
	flagConfig := globalFlags.StringP("config", "c", "", "Use specified config `file`")
	flagDB := globalFlags.String("db", "", "Override database `path`")

	if err := globalFlags.Parse(args[1:]); err != nil {
		fprintln(errOut, "error:", err)
		printUsage(errOut)

		return 1
	}

	workDir := *flagCwd
	if workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			fprintln(errOut, "error:", err)

			return 1
		}

		workDir = wd
	}

	cfg, err := LoadConfig(LoadConfigInput{
		WorkDir:    workDir,
		ConfigPath: *flagConfig,
		DBPath:     *flagDB,
		Env:        envFromEnviron(environ),
	})
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	rest := globalFlags.Args()

	if *flagHelp || len(rest) == 0 {
		printUsage(out)

		return 0
	}

	b := bridge.New()
	cmdName, cmdArgs := rest[0], rest[1:]

	switch cmdName {
	case "open":
		return cmdOpen(out, errOut, b, cfg, workDir, cmdArgs)
	case "show":
		return cmdShow(out, errOut, b, cfg, workDir, cmdArgs)
	case "apply":
		return cmdApply(out, errOut, b, cfg, workDir, cmdArgs)
	case "render-block":
		return cmdRenderBlock(out, errOut, b, cfg, workDir, cmdArgs)
	case "render-journal":
		return cmdRenderJournal(out, errOut, b, cfg, workDir, cmdArgs)
	case "repl":
		return cmdRepl(out, errOut, b, cfg, workDir, cmdArgs)
	case "version":
		fprintln(out, formatVersion(bridge.Version()))

		return 0
	default:
		fprintln(errOut, "error: unknown command:", cmdName)
		printUsage(errOut)

		return 1
	}
}

func formatVersion(v uint32) string {
	return fmt.Sprintf("%d.%d.%d", v/10000, (v/100)%100, v%100)
}

func printUsage(out io.Writer) {
	fprintln(out, "Usage: lgctl [global options] <command> [command options]")
	fprintln(out, "")
	fprintln(out, "Commands:")
	fprintln(out, "  open            Create or verify a database file")
	fprintln(out, "  show            Print superblock/schema summary")
	fprintln(out, "  apply           Insert one document in its own transaction")
	fprintln(out, "  render-block    Print one block's introspection view")
	fprintln(out, "  render-journal  Print journal entries since a sequence number")
	fprintln(out, "  repl            Interactive session")
	fprintln(out, "  version         Print the bridge's encoded version")
	fprintln(out, "")
	fprintln(out, "Global options:")
	fprintln(out, "  -C, --cwd=<dir>       Run as if started in dir")
	fprintln(out, "  -c, --config=<file>   Use specified config file")
	fprintln(out, "      --db=<path>       Override database path")
}

func fprintln(w io.Writer, a ...any) {
	fmt.Fprintln(w, a...)
}

func requireDBPath(errOut io.Writer, cfg Config, workDir string) (string, bool) {
	if cfg.DBPath == "" {
		fprintln(errOut, "error: no database path: pass --db or set db_path in config")

		return "", false
	}

	return resolvePath(workDir, cfg.DBPath), true
}

func hasHelpFlag(args []string) bool {
	for _, a := range args {
		if a == "-h" || a == "--help" {
			return true
		}

		if !strings.HasPrefix(a, "-") {
			break
		}
	}

	return false
}
