package main

import (
	"io"

	flag "github.com/spf13/pflag"

	"github.com/hyperpolymath/lithoglyph-sub001/pkg/blockfile"
	"github.com/hyperpolymath/lithoglyph-sub001/pkg/bridge"
	"github.com/hyperpolymath/lithoglyph-sub001/pkg/fs"
)

func cmdShow(out, errOut io.Writer, b *bridge.Bridge, cfg Config, workDir string, args []string) int {
	if hasHelpFlag(args) {
		fprintln(out, "Usage: lgctl show [--db=path]")
		fprintln(out, "")
		fprintln(out, "Prints the schema introspection blob rooted at the cached superblock.")

		return 0
	}

	flagSet := flag.NewFlagSet("show", flag.ContinueOnError)
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
	defer b.Close(h) //nolint:errcheck // best-effort cleanup of a short-lived CLI invocation

	schema, err := b.IntrospectSchema(h)
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	out.Write(schema)    //nolint:errcheck,gosec // CLI stdout write
	fprintln(out, "")

	return 0
}
