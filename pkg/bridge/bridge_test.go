package bridge_test

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/hyperpolymath/lithoglyph-sub001/pkg/block"
	"github.com/hyperpolymath/lithoglyph-sub001/pkg/blockfile"
	"github.com/hyperpolymath/lithoglyph-sub001/pkg/bridge"
	"github.com/hyperpolymath/lithoglyph-sub001/pkg/fs"
	"github.com/hyperpolymath/lithoglyph-sub001/pkg/txn"
)

func openDB(t *testing.T, b *bridge.Bridge) (bridge.DBHandle, string) {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "scenario.lgh")

	h, err := b.Open(path, blockfile.Options{FS: fs.NewReal()})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	return h, path
}

func Test_Scenario_Create_Then_Open_Preserves_Block_Count(t *testing.T) {
	b := bridge.New()
	h, path := openDB(t, b)

	schema, err := b.IntrospectSchema(h)
	if err != nil {
		t.Fatalf("IntrospectSchema: %v", err)
	}

	assertBlockCount(t, schema, 1)

	if err := b.Close(h); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := b.Open(path, blockfile.Options{FS: fs.NewReal()})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}

	schema, err = b.IntrospectSchema(reopened)
	if err != nil {
		t.Fatalf("IntrospectSchema: %v", err)
	}

	assertBlockCount(t, schema, 1)
}

func assertBlockCount(t *testing.T, schemaJSON []byte, want uint64) {
	t.Helper()

	var parsed struct {
		BlockCount uint64 `json:"block_count"`
	}

	if err := json.Unmarshal(schemaJSON, &parsed); err != nil {
		t.Fatalf("unmarshal schema: %v", err)
	}

	if parsed.BlockCount != want {
		t.Fatalf("block_count=%d, want=%d", parsed.BlockCount, want)
	}
}

func Test_Scenario_Insert_Commit_Then_ReadBlocks_Returns_One_Row(t *testing.T) {
	b := bridge.New()
	h, _ := openDB(t, b)

	tx, err := b.Begin(h, txn.ReadWrite)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}

	if _, err := b.Apply(tx, []byte("hello")); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if err := b.Commit(tx); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	rowsJSON, err := b.ReadBlocks(h, block.TypeDocument)
	if err != nil {
		t.Fatalf("ReadBlocks: %v", err)
	}

	var rows []struct {
		BlockID uint64 `json:"block_id"`
		Data    string `json:"data"`
	}

	if err := json.Unmarshal(rowsJSON, &rows); err != nil {
		t.Fatalf("unmarshal rows: %v", err)
	}

	if len(rows) != 1 {
		t.Fatalf("len(rows)=%d, want=1", len(rows))
	}

	if rows[0].Data != "hello" {
		t.Fatalf("Data=%q, want=%q", rows[0].Data, "hello")
	}
}

func Test_Scenario_Abort_Leaves_No_Visible_Document(t *testing.T) {
	b := bridge.New()
	h, _ := openDB(t, b)

	tx, err := b.Begin(h, txn.ReadWrite)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}

	if _, err := b.Apply(tx, []byte("doomed")); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if err := b.Abort(tx); err != nil {
		t.Fatalf("Abort: %v", err)
	}

	rowsJSON, err := b.ReadBlocks(h, block.TypeDocument)
	if err != nil {
		t.Fatalf("ReadBlocks: %v", err)
	}

	var rows []any
	if err := json.Unmarshal(rowsJSON, &rows); err != nil {
		t.Fatalf("unmarshal rows: %v", err)
	}

	if len(rows) != 0 {
		t.Fatalf("len(rows)=%d, want=0", len(rows))
	}
}

func Test_Scenario_Delete_Frees_The_Block_And_Removes_It_From_ReadBlocks(t *testing.T) {
	b := bridge.New()
	h, _ := openDB(t, b)

	insertTx, err := b.Begin(h, txn.ReadWrite)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}

	res, err := b.Apply(insertTx, []byte("x"))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if err := b.Commit(insertTx); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	deleteTx, err := b.Begin(h, txn.ReadWrite)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}

	if err := b.DeleteBlock(deleteTx, res.BlockID); err != nil {
		t.Fatalf("DeleteBlock: %v", err)
	}

	if err := b.Commit(deleteTx); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	rowsJSON, err := b.ReadBlocks(h, block.TypeDocument)
	if err != nil {
		t.Fatalf("ReadBlocks: %v", err)
	}

	var rows []any
	if err := json.Unmarshal(rowsJSON, &rows); err != nil {
		t.Fatalf("unmarshal rows: %v", err)
	}

	if len(rows) != 0 {
		t.Fatalf("len(rows)=%d, want=0", len(rows))
	}
}

func Test_Scenario_Proof_Reject_Reports_Valid_False_With_OK_Status(t *testing.T) {
	b := bridge.New()

	if err := b.RegisterVerifier("normalization", func([]byte, any) (bool, error) {
		return false, nil
	}, nil); err != nil {
		t.Fatalf("RegisterVerifier: %v", err)
	}

	valid, err := b.Verify([]byte(`{"type":"normalization","data":"…"}`))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}

	if valid {
		t.Fatalf("valid=true, want=false")
	}
}

func Test_Handle_Isolation_Operations_On_A_Transaction_From_A_Closed_Database_Fail(t *testing.T) {
	b := bridge.New()
	h, _ := openDB(t, b)

	tx, err := b.Begin(h, txn.ReadWrite)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}

	if err := b.Close(h); err != nil {
		t.Fatalf("Close: %v", err)
	}

	_, err = b.Apply(tx, []byte("x"))
	if !errors.Is(err, bridge.ErrInvalidHandle) {
		t.Fatalf("err=%v, want=%v", err, bridge.ErrInvalidHandle)
	}

	if bridge.StatusFor(err) != bridge.StatusInvalidArgument {
		t.Fatalf("StatusFor=%v, want=%v", bridge.StatusFor(err), bridge.StatusInvalidArgument)
	}
}

func Test_Operations_On_Unregistered_Handle_Return_ErrInvalidHandle(t *testing.T) {
	b := bridge.New()

	if _, err := b.IntrospectSchema(999); !errors.Is(err, bridge.ErrInvalidHandle) {
		t.Fatalf("err=%v, want=%v", err, bridge.ErrInvalidHandle)
	}
}

func Test_StatusFor_Maps_Known_Sentinels(t *testing.T) {
	cases := []struct {
		err  error
		want bridge.Status
	}{
		{nil, bridge.StatusOK},
		{bridge.ErrInvalidHandle, bridge.StatusInvalidArgument},
		{blockfile.ErrInvalidArgument, bridge.StatusInvalidArgument},
		{txn.ErrAlreadyCommitted, bridge.StatusTxnAlreadyCommitted},
		{txn.ErrNotActive, bridge.StatusTxnNotActive},
		{blockfile.ErrCorruptSuperblock, bridge.StatusCorruption},
		{blockfile.ErrClosed, bridge.StatusIOError},
	}

	for _, c := range cases {
		if got := bridge.StatusFor(c.err); got != c.want {
			t.Errorf("StatusFor(%v)=%v, want=%v", c.err, got, c.want)
		}
	}
}

func Test_Version_Encodes_Major_Minor_Patch(t *testing.T) {
	v := bridge.Version()

	major := v / 10000
	minor := (v / 100) % 100
	patch := v % 100

	if major != 0 || minor != 1 || patch != 0 {
		t.Fatalf("decoded version=%d.%d.%d, want=0.1.0", major, minor, patch)
	}
}

func Test_Close_Invalidates_All_Transactions_Belonging_To_That_Database(t *testing.T) {
	b := bridge.New()
	h, _ := openDB(t, b)

	tx1, err := b.Begin(h, txn.ReadWrite)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}

	tx2, err := b.Begin(h, txn.ReadWrite)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}

	if err := b.Close(h); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if err := b.Abort(tx1); !errors.Is(err, bridge.ErrInvalidHandle) {
		t.Fatalf("Abort(tx1) err=%v, want=%v", err, bridge.ErrInvalidHandle)
	}

	if err := b.Abort(tx2); !errors.Is(err, bridge.ErrInvalidHandle) {
		t.Fatalf("Abort(tx2) err=%v, want=%v", err, bridge.ErrInvalidHandle)
	}
}
