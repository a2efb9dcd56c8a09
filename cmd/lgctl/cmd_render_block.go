package main

import (
	"io"
	"strings"

	flag "github.com/spf13/pflag"
	"github.com/natefinch/atomic"

	"github.com/hyperpolymath/lithoglyph-sub001/pkg/blockfile"
	"github.com/hyperpolymath/lithoglyph-sub001/pkg/bridge"
	"github.com/hyperpolymath/lithoglyph-sub001/pkg/fs"
)

func cmdRenderBlock(out, errOut io.Writer, b *bridge.Bridge, cfg Config, workDir string, args []string) int {
	if hasHelpFlag(args) {
		fprintln(out, "Usage: lgctl render-block --id=<N> [--db=path] [--out=file]")

		return 0
	}

	flagSet := flag.NewFlagSet("render-block", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)

	id := flagSet.Uint64("id", 0, "Block id to render")
	outFile := flagSet.String("out", "", "Write the blob to this file atomically instead of stdout")

	if err := flagSet.Parse(args); err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	if !flagSet.Changed("id") {
		fprintln(errOut, "error: --id is required")

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

	blob, err := b.RenderBlock(h, *id)
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	return writeBlob(out, errOut, *outFile, blob)
}

// writeBlob prints blob to out, or writes it atomically to outFile when set
// — the same whole-file-replace contract the teacher's lock.go and
// internal/ticket/cache.go use via natefinch/atomic for their own on-disk
// artifacts.
func writeBlob(out, errOut io.Writer, outFile string, blob []byte) int {
	if outFile == "" {
		out.Write(blob) //nolint:errcheck,gosec // CLI stdout write
		fprintln(out, "")

		return 0
	}

	if err := atomic.WriteFile(outFile, strings.NewReader(string(blob))); err != nil {
		fprintln(errOut, "error: writing", outFile+":", err)

		return 1
	}

	fprintln(out, "wrote", outFile)

	return 0
}
