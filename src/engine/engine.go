// Package engine wires the storage engine's subsystems into a single
// handle a CLI or test driver opens against one data file: disk manager,
// buffer pool, log manager, lock manager, transaction manager, table
// heap, and one primary B+Tree index over it.
package engine

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"simple-db-golang/src/common"
	"simple-db-golang/src/concurrency"
	"simple-db-golang/src/disk"
	"simple-db-golang/src/index"
	"simple-db-golang/src/logging"
	"simple-db-golang/src/recovery"
	"simple-db-golang/src/table"
)

const (
	// tableHeaderPageId/indexHeaderPageId are the first two pages a fresh
	// database ever allocates, in this fixed order, so reopening an
	// existing file can name them without persisting a root record
	// anywhere else.
	tableHeaderPageId = common.PageId(0)
	indexHeaderPageId = common.PageId(1)

	defaultPoolSize  = 128
	primaryIndexName = "primary"
)

// Database is the engine's embedding-facing handle: one data file, one
// table heap, one index over it.
type Database struct {
	DiskManager *disk.DiskManager
	BufferPool  *disk.BufferPoolManager
	LogManager  *logging.LogManager
	LockManager *concurrency.LockManager
	TxnManager  *concurrency.TransactionManager
	Table       *table.TableHeap
	Index       *index.BPlusTree[string]

	dataFile string
}

// Open creates a fresh database at dataFile if no such file exists yet,
// or reopens one previously created by Open -- replaying its log via the
// recovery driver first, since the buffer pool's dirty pages from the
// prior run may never have reached disk.
func Open(dataFile string, poolSize int) (*Database, error) {
	if poolSize <= 0 {
		poolSize = defaultPoolSize
	}
	isNew := true
	if fi, err := os.Stat(dataFile); err == nil && fi.Size() > 0 {
		isNew = false
	}

	dm := disk.NewDiskManager(dataFile)
	bpm := disk.NewBufferPoolManager(poolSize, dm, disk.NewLRUReplacer())
	lm := logging.NewLogManager(dm)
	bpm.SetLogManager(lm)
	lockManager := concurrency.NewLockManager(false)
	txnManager := concurrency.NewTransactionManager(lockManager, lm)

	var th *table.TableHeap
	var idx *index.BPlusTree[string]

	if isNew {
		th = table.NewTableHeap(bpm, lockManager, lm, true, common.InvalidPageId)
		if th.HeaderPageId() != tableHeaderPageId {
			log.Warnf("Table heap header landed on page %d, expected %d.", th.HeaderPageId(), tableHeaderPageId)
		}
		headerPage, err := bpm.NewPage()
		if err != nil {
			return nil, fmt.Errorf("cannot create index header page: %w", err)
		}
		if headerPage.PageId() != indexHeaderPageId {
			log.Warnf("Index header landed on page %d, expected %d.", headerPage.PageId(), indexHeaderPageId)
		}
		index.InitHeaderPage(headerPage.Data())
		bpm.UnpinPage(headerPage.PageId(), true)
		idx = index.NewBPlusTree[string](primaryIndexName, bpm, headerPage.PageId())
	} else {
		lm.RunFlushThread()
		mgr := recovery.NewManager(dm, table.NewTableHeap(bpm, nil, nil, false, tableHeaderPageId))
		mgr.Redo()
		mgr.Undo()
		lm.StopFlushThread()

		th = table.NewTableHeap(bpm, lockManager, lm, false, tableHeaderPageId)
		idx = index.NewBPlusTree[string](primaryIndexName, bpm, indexHeaderPageId)
	}

	lm.RunFlushThread()

	return &Database{
		DiskManager: dm,
		BufferPool:  bpm,
		LogManager:  lm,
		LockManager: lockManager,
		TxnManager:  txnManager,
		Table:       th,
		Index:       idx,
		dataFile:    dataFile,
	}, nil
}

// Close stops the log flusher (which force-flushes the log as it stops),
// then flushes every dirty page and closes both files. Callers that want a recovery-exercising shutdown
// should skip Close and let the process exit instead.
func (db *Database) Close() error {
	db.LogManager.StopFlushThread()
	if err := db.BufferPool.FlushAllPages(); err != nil {
		return err
	}
	db.LogManager.Flush(true)
	return db.DiskManager.Close()
}

// Put begins its own transaction, inserts value into the table heap, and
// indexes rid under key, committing on success or aborting and returning
// an error if the key already exists.
func (db *Database) Put(key string, value []byte) error {
	txn, _ := db.TxnManager.Begin()
	rid := db.Table.Insert(value, txn)
	if !db.Index.Insert(key, rid, txn) {
		db.Table.Delete(rid, txn)
		db.TxnManager.Abort(txn)
		return fmt.Errorf("key %q already exists", key)
	}
	db.TxnManager.Commit(txn)
	return nil
}

// Get looks up key in the index and returns its table heap value.
func (db *Database) Get(key string) ([]byte, bool) {
	txn, _ := db.TxnManager.Begin()
	defer db.TxnManager.Commit(txn)

	rid, ok := db.Index.GetValue(key, txn)
	if !ok {
		return nil, false
	}
	return db.Table.Get(rid, txn)
}

// Delete removes key from the index and its tuple from the table heap.
func (db *Database) Delete(key string) bool {
	txn, _ := db.TxnManager.Begin()
	rid, ok := db.Index.GetValue(key, txn)
	if !ok {
		db.TxnManager.Abort(txn)
		return false
	}
	removed := db.Index.Remove(key, txn) && db.Table.Delete(rid, txn)
	if removed {
		db.TxnManager.Commit(txn)
	} else {
		db.TxnManager.Abort(txn)
	}
	return removed
}
