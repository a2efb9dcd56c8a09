package main

import (
	"io"

	flag "github.com/spf13/pflag"

	"github.com/hyperpolymath/lithoglyph-sub001/pkg/blockfile"
	"github.com/hyperpolymath/lithoglyph-sub001/pkg/bridge"
	"github.com/hyperpolymath/lithoglyph-sub001/pkg/fs"
)

func cmdRenderJournal(out, errOut io.Writer, b *bridge.Bridge, cfg Config, workDir string, args []string) int {
	if hasHelpFlag(args) {
		fprintln(out, "Usage: lgctl render-journal [--since=<N>] [--limit=<N>] [--db=path] [--out=file]")

		return 0
	}

	flagSet := flag.NewFlagSet("render-journal", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)

	since := flagSet.Uint64("since", 0, "Only render entries with sequence greater than this")
	limit := flagSet.Uint64("limit", uint64(cfg.JournalPageLimit), "Cap on entries walked back from the tail (0 = package default)")
	outFile := flagSet.String("out", "", "Write the blob to this file atomically instead of stdout")

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

	blob, err := b.RenderJournal(h, *since, *limit)
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	return writeBlob(out, errOut, *outFile, blob)
}
