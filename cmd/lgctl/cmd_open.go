package main

import (
	"io"

	flag "github.com/spf13/pflag"

	"github.com/hyperpolymath/lithoglyph-sub001/pkg/blockfile"
	"github.com/hyperpolymath/lithoglyph-sub001/pkg/bridge"
	"github.com/hyperpolymath/lithoglyph-sub001/pkg/fs"
)

func cmdOpen(out, errOut io.Writer, b *bridge.Bridge, cfg Config, workDir string, args []string) int {
	if hasHelpFlag(args) {
		fprintln(out, "Usage: lgctl open [--db=path]")
		fprintln(out, "")
		fprintln(out, "Creates the database file if it does not exist; otherwise verifies it opens.")

		return 0
	}

	flagSet := flag.NewFlagSet("open", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)

	if err := flagSet.Parse(args); err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	path, ok := requireDBPath(errOut, cfg, workDir)
	if !ok {
		return 1
	}

	h, err := b.Open(path, blockfile.Options{FS: fs.NewReal()})
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	if cfg.InitBuiltins {
		if err := b.InitBuiltins(); err != nil {
			fprintln(errOut, "error:", err)

			return 1
		}
	}

	fprintln(out, "opened", path)

	return 0
}
