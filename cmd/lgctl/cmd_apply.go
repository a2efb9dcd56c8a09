package main

import (
	"io"

	flag "github.com/spf13/pflag"

	"github.com/hyperpolymath/lithoglyph-sub001/pkg/blockfile"
	"github.com/hyperpolymath/lithoglyph-sub001/pkg/bridge"
	"github.com/hyperpolymath/lithoglyph-sub001/pkg/fs"
	"github.com/hyperpolymath/lithoglyph-sub001/pkg/txn"
)

func cmdApply(out, errOut io.Writer, b *bridge.Bridge, cfg Config, workDir string, args []string) int {
	if hasHelpFlag(args) {
		fprintln(out, "Usage: lgctl apply --data=<text> [--db=path]")
		fprintln(out, "")
		fprintln(out, "Inserts one document in its own read-write transaction and commits it.")

		return 0
	}

	flagSet := flag.NewFlagSet("apply", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)

	data := flagSet.String("data", "", "Payload text to insert")

	if err := flagSet.Parse(args); err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	if *data == "" {
		fprintln(errOut, "error: --data is required and must be non-empty")

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

	txHandle, err := b.Begin(h, txn.ReadWrite)
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	res, err := b.Apply(txHandle, []byte(*data))
	if err != nil {
		fprintln(errOut, "error:", err)
		_ = b.Abort(txHandle)

		return 1
	}

	if err := b.Commit(txHandle); err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	fprintln(out, "block_id", res.BlockID)

	return 0
}
