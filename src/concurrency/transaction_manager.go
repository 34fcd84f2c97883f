package concurrency

import (
	"sync"

	"github.com/google/uuid"

	"simple-db-golang/src/common"
	"simple-db-golang/src/logging"
)

// TransactionManager issues transactions and drives them through Commit and
// Abort: releasing every lock they hold and appending the closing log
// record. lockManager/logManager may be nil to run unlocked and unlogged,
// e.g. during recovery replay.
type TransactionManager struct {
	lockManager *LockManager
	logManager  *logging.LogManager

	mu      sync.Mutex
	byId    map[common.TxnId]*Transaction
	session map[common.TxnId]uuid.UUID
}

func NewTransactionManager(lockManager *LockManager, logManager *logging.LogManager) *TransactionManager {
	return &TransactionManager{
		lockManager: lockManager,
		logManager:  logManager,
		byId:        make(map[common.TxnId]*Transaction),
		session:     make(map[common.TxnId]uuid.UUID),
	}
}

// Begin starts a new transaction and logs its BEGIN record. The returned
// uuid is a debug-only session tag, never used by lock/log ordering: those
// rely on the monotonic, totally ordered Transaction id.
func (tm *TransactionManager) Begin() (*Transaction, uuid.UUID) {
	txn := NewTransaction()
	sessionTag := uuid.New()

	tm.mu.Lock()
	tm.byId[txn.Id()] = txn
	tm.session[txn.Id()] = sessionTag
	tm.mu.Unlock()

	if tm.logManager != nil {
		record := logging.NewBeginLogRecord(txn.Id(), txn.PrevLsn())
		lsn := tm.logManager.AppendLogRecord(record)
		txn.SetPrevLsn(lsn)
	}
	return txn, sessionTag
}

// SessionTag returns the uuid Begin stamped on txn, for CLI/debug display.
func (tm *TransactionManager) SessionTag(txn *Transaction) (uuid.UUID, bool) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tag, ok := tm.session[txn.Id()]
	return tag, ok
}

// Commit appends the COMMIT record, releases every lock txn holds, and
// forgets the transaction.
func (tm *TransactionManager) Commit(txn *Transaction) {
	txn.SetState(StateCommitted)
	if tm.logManager != nil {
		record := logging.NewCommitLogRecord(txn.Id(), txn.PrevLsn())
		lsn := tm.logManager.AppendLogRecord(record)
		txn.SetPrevLsn(lsn)
		tm.logManager.Flush(true)
	}
	tm.releaseLocks(txn)
	tm.forget(txn)
}

// Abort appends the ABORT record and releases every lock txn holds. It
// does not itself undo txn's writes; that's the recovery driver's job
// when it finds an aborted-but-unreleased transaction after a crash, or
// the caller's job for a live abort (walk txn's own undo chain, same as
// recovery's Undo does for a crash loser).
func (tm *TransactionManager) Abort(txn *Transaction) {
	txn.SetState(StateAborted)
	if tm.logManager != nil {
		record := logging.NewAbortLogRecord(txn.Id(), txn.PrevLsn())
		lsn := tm.logManager.AppendLogRecord(record)
		txn.SetPrevLsn(lsn)
		tm.logManager.Flush(true)
	}
	tm.releaseLocks(txn)
	tm.forget(txn)
}

func (tm *TransactionManager) releaseLocks(txn *Transaction) {
	if tm.lockManager == nil {
		return
	}
	for rid := range txn.SharedLockSet() {
		tm.lockManager.Unlock(txn, rid)
	}
	for rid := range txn.ExclusiveLockSet() {
		tm.lockManager.Unlock(txn, rid)
	}
}

func (tm *TransactionManager) forget(txn *Transaction) {
	tm.mu.Lock()
	delete(tm.byId, txn.Id())
	delete(tm.session, txn.Id())
	tm.mu.Unlock()
}

// Get looks up a still-running transaction by id, for a CLI session
// resuming work against a handle it was given earlier.
func (tm *TransactionManager) Get(id common.TxnId) (*Transaction, bool) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	txn, ok := tm.byId[id]
	return txn, ok
}
