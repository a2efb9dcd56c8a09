package txn

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/hyperpolymath/lithoglyph-sub001/pkg/block"
	"github.com/hyperpolymath/lithoglyph-sub001/pkg/blockfile"
	"github.com/hyperpolymath/lithoglyph-sub001/pkg/fs"
)

func openManager(t *testing.T) *blockfile.Manager {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "db.lgdb")

	m, err := blockfile.Open(path, blockfile.Options{FS: fs.NewReal()})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	t.Cleanup(func() { _ = m.Close() })

	return m
}

func Test_Apply_Rejects_Empty_Payload(t *testing.T) {
	mgr := openManager(t)
	tx := Begin(mgr, ReadWrite)

	_, err := tx.Apply(nil)
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("err=%v, want=%v", err, ErrInvalidArgument)
	}
}

func Test_Apply_Rejects_Oversized_Payload(t *testing.T) {
	mgr := openManager(t)
	tx := Begin(mgr, ReadWrite)

	_, err := tx.Apply(make([]byte, block.PayloadSize+1))
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("err=%v, want=%v", err, ErrInvalidArgument)
	}
}

func Test_Apply_Rejects_On_ReadOnly_Transaction(t *testing.T) {
	mgr := openManager(t)
	tx := Begin(mgr, ReadOnly)

	_, err := tx.Apply([]byte("payload"))
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("err=%v, want=%v", err, ErrInvalidArgument)
	}
}

func Test_Commit_Writes_Block_Journals_And_Is_Readable_After(t *testing.T) {
	mgr := openManager(t)
	tx := Begin(mgr, ReadWrite)

	res, err := tx.Apply([]byte(`{"name":"alice"}`))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	b, err := mgr.ReadBlock(res.BlockID)
	if err != nil {
		t.Fatalf("ReadBlock: %v", err)
	}

	if string(b.Payload) != `{"name":"alice"}` {
		t.Fatalf("Payload=%q, want=%q", b.Payload, `{"name":"alice"}`)
	}

	entries, err := mgr.RenderJournal(0, 0)
	if err != nil {
		t.Fatalf("RenderJournal: %v", err)
	}

	if len(entries) != 1 {
		t.Fatalf("len(entries)=%d, want=1", len(entries))
	}
}

func Test_Commit_Processes_Deletes_And_Frees_The_Block(t *testing.T) {
	mgr := openManager(t)

	insert := Begin(mgr, ReadWrite)

	res, err := insert.Apply([]byte("to be deleted"))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if err := insert.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	del := Begin(mgr, ReadWrite)
	if err := del.DeleteBlock(res.BlockID); err != nil {
		t.Fatalf("DeleteBlock: %v", err)
	}

	if err := del.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	sb := mgr.Stat()
	if got, want := sb.FreeListHead, res.BlockID; got != want {
		t.Fatalf("FreeListHead=%d, want=%d", got, want)
	}
}

func Test_Abort_Discards_Pending_Writes_Without_Touching_Disk(t *testing.T) {
	mgr := openManager(t)
	tx := Begin(mgr, ReadWrite)

	before := mgr.Stat()

	if _, err := tx.Apply([]byte("never committed")); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if err := tx.Abort(); err != nil {
		t.Fatalf("Abort: %v", err)
	}

	after := mgr.Stat()
	if got, want := after.JournalHead, before.JournalHead; got != want {
		t.Fatalf("JournalHead=%d, want=%d (unchanged)", got, want)
	}
}

func Test_Commit_After_Commit_Returns_ErrAlreadyCommitted(t *testing.T) {
	mgr := openManager(t)
	tx := Begin(mgr, ReadWrite)

	if _, err := tx.Apply([]byte("x")); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if err := tx.Commit(); !errors.Is(err, ErrAlreadyCommitted) {
		t.Fatalf("second Commit err=%v, want=%v", err, ErrAlreadyCommitted)
	}
}

func Test_Abort_After_Commit_Returns_ErrAlreadyCommitted(t *testing.T) {
	mgr := openManager(t)
	tx := Begin(mgr, ReadWrite)

	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if err := tx.Abort(); !errors.Is(err, ErrAlreadyCommitted) {
		t.Fatalf("Abort err=%v, want=%v", err, ErrAlreadyCommitted)
	}
}

func Test_Operations_After_Abort_Return_ErrNotActive(t *testing.T) {
	mgr := openManager(t)
	tx := Begin(mgr, ReadWrite)

	if err := tx.Abort(); err != nil {
		t.Fatalf("Abort: %v", err)
	}

	if _, err := tx.Apply([]byte("x")); !errors.Is(err, ErrNotActive) {
		t.Fatalf("Apply err=%v, want=%v", err, ErrNotActive)
	}

	if err := tx.DeleteBlock(1); !errors.Is(err, ErrNotActive) {
		t.Fatalf("DeleteBlock err=%v, want=%v", err, ErrNotActive)
	}
}

func Test_UpdateBlock_Overwrites_Existing_Payload_On_Commit(t *testing.T) {
	mgr := openManager(t)

	insert := Begin(mgr, ReadWrite)

	res, err := insert.Apply([]byte("version 1"))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if err := insert.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	update := Begin(mgr, ReadWrite)
	if err := update.UpdateBlock(res.BlockID, []byte("version 2")); err != nil {
		t.Fatalf("UpdateBlock: %v", err)
	}

	if err := update.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	b, err := mgr.ReadBlock(res.BlockID)
	if err != nil {
		t.Fatalf("ReadBlock: %v", err)
	}

	if string(b.Payload) != "version 2" {
		t.Fatalf("Payload=%q, want=%q", b.Payload, "version 2")
	}
}

func Test_Sequence_Snapshots_JournalHead_Plus_One_At_Begin(t *testing.T) {
	mgr := openManager(t)

	first := Begin(mgr, ReadWrite)
	if got, want := first.Sequence(), uint64(1); got != want {
		t.Fatalf("Sequence=%d, want=%d", got, want)
	}

	if _, err := first.Apply([]byte("x")); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if err := first.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	second := Begin(mgr, ReadWrite)
	if got, want := second.Sequence(), uint64(2); got != want {
		t.Fatalf("Sequence=%d, want=%d", got, want)
	}
}
