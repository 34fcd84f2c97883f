package recovery

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"simple-db-golang/src/common"
	"simple-db-golang/src/concurrency"
	"simple-db-golang/src/disk"
	"simple-db-golang/src/logging"
	"simple-db-golang/src/table"
)

func cleanupFiles(file string) {
	os.Remove(file)
	os.Remove(file + ".log")
}

// TestRecovery_RedoRestoresCommittedInsert simulates a crash where the log
// reached disk (the log manager was flushed) but the buffer pool's dirty
// pages never did. Reopening against the same data file and replaying the
// log should reconstruct the committed tuple at its original rid.
func TestRecovery_RedoRestoresCommittedInsert(t *testing.T) {
	file := "tmp-recovery-redo"
	defer cleanupFiles(file)

	dm := disk.NewDiskManager(file)
	bpm := disk.NewBufferPoolManager(8, dm, disk.NewLRUReplacer())
	lm := logging.NewLogManager(dm)
	lm.RunFlushThread()
	lockManager := concurrency.NewLockManager(false)
	txnManager := concurrency.NewTransactionManager(lockManager, lm)

	th := table.NewTableHeap(bpm, lockManager, lm, true, common.InvalidPageId)
	txn, _ := txnManager.Begin()
	rid := th.Insert([]byte("hello world"), txn)
	txnManager.Commit(txn)

	lm.StopFlushThread()
	dm.Close() // simulate crash: bpm's dirty pages never reached the data file.

	dm2 := disk.NewDiskManager(file)
	defer dm2.Close()
	bpm2 := disk.NewBufferPoolManager(8, dm2, disk.NewLRUReplacer())
	th2 := table.NewTableHeap(bpm2, nil, nil, true, common.InvalidPageId)

	mgr := NewManager(dm2, th2)
	mgr.Redo()
	require.Equal(t, 0, mgr.ActiveTxnCount())
	mgr.Undo()

	data, ok := th2.Get(rid, nil)
	require.True(t, ok)
	require.Equal(t, []byte("hello world"), data)
}

// TestRecovery_UndoRevertsUncommittedInsert simulates a crash mid-transaction:
// the insert's log record reached disk but neither COMMIT nor ABORT did.
// Redo reconstructs the tuple (repeating history); Undo must then remove it
// again, since the transaction never finished.
func TestRecovery_UndoRevertsUncommittedInsert(t *testing.T) {
	file := "tmp-recovery-undo"
	defer cleanupFiles(file)

	dm := disk.NewDiskManager(file)
	bpm := disk.NewBufferPoolManager(8, dm, disk.NewLRUReplacer())
	lm := logging.NewLogManager(dm)
	lm.RunFlushThread()

	th := table.NewTableHeap(bpm, nil, lm, true, common.InvalidPageId)
	txn := concurrency.NewTransaction()
	rid := th.Insert([]byte("in flight"), txn)
	lm.Flush(true) // the insert reaches disk, but txn never commits or aborts.

	lm.StopFlushThread()
	dm.Close()

	dm2 := disk.NewDiskManager(file)
	defer dm2.Close()
	bpm2 := disk.NewBufferPoolManager(8, dm2, disk.NewLRUReplacer())
	th2 := table.NewTableHeap(bpm2, nil, nil, true, common.InvalidPageId)

	mgr := NewManager(dm2, th2)
	mgr.Redo()
	require.Equal(t, 1, mgr.ActiveTxnCount())

	_, stillThereAfterRedo := th2.Get(rid, nil)
	require.True(t, stillThereAfterRedo)

	mgr.Undo()
	_, ok := th2.Get(rid, nil)
	require.False(t, ok)
}

// TestRecovery_MixedCommittedAndUncommittedTransactions exercises both
// paths at once: one transaction commits its insert, a second is left
// hanging. Redo must restore both tuples, Undo must remove only the
// second.
func TestRecovery_MixedCommittedAndUncommittedTransactions(t *testing.T) {
	file := "tmp-recovery-mixed"
	defer cleanupFiles(file)

	dm := disk.NewDiskManager(file)
	bpm := disk.NewBufferPoolManager(8, dm, disk.NewLRUReplacer())
	lm := logging.NewLogManager(dm)
	lm.RunFlushThread()
	txnManager := concurrency.NewTransactionManager(nil, lm)

	th := table.NewTableHeap(bpm, nil, lm, true, common.InvalidPageId)

	committed, _ := txnManager.Begin()
	committedRid := th.Insert([]byte("durable"), committed)
	txnManager.Commit(committed)

	hanging := concurrency.NewTransaction()
	hangingRid := th.Insert([]byte("lost"), hanging)
	lm.Flush(true)

	lm.StopFlushThread()
	dm.Close()

	dm2 := disk.NewDiskManager(file)
	defer dm2.Close()
	bpm2 := disk.NewBufferPoolManager(8, dm2, disk.NewLRUReplacer())
	th2 := table.NewTableHeap(bpm2, nil, nil, true, common.InvalidPageId)

	mgr := NewManager(dm2, th2)
	mgr.Redo()
	require.Equal(t, 1, mgr.ActiveTxnCount())
	mgr.Undo()

	data, ok := th2.Get(committedRid, nil)
	require.True(t, ok)
	require.Equal(t, []byte("durable"), data)

	_, ok = th2.Get(hangingRid, nil)
	require.False(t, ok)
}
