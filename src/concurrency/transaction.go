package concurrency

import (
	"sync"
	"sync/atomic"

	"simple-db-golang/src/common"
	"simple-db-golang/src/disk"
)

type TransactionState int32

const (
	StateGrowing TransactionState = iota
	StateShrinking
	StateCommitted
	StateAborted
)

var nextTxnId int64

// Transaction is an opaque handle threaded through the lock manager, the
// log manager and every B+Tree/table-heap operation a client performs in
// a single unit of work. Ids are handed out in strictly increasing order:
// wait-die compares them directly, so a later Begin must always outrank
// an earlier one.
type Transaction struct {
	id    common.TxnId
	state TransactionState

	mu             sync.Mutex
	sharedLocks    map[common.RID]struct{}
	exclusiveLocks map[common.RID]struct{}

	// pageSet holds the pages currently latched by this transaction's
	// in-flight B+Tree operation, in acquisition order, so they can be
	// released together once the operation proves safe.
	pageSet []*disk.Page
	// deletedPageSet holds page ids this transaction's B+Tree operation
	// deleted, deferred until the transaction's page-set is freed.
	deletedPageSet map[common.PageId]struct{}

	prevLsn common.Lsn
}

func NewTransaction() *Transaction {
	id := atomic.AddInt64(&nextTxnId, 1) - 1
	return &Transaction{
		id:             common.TxnId(id),
		state:          StateGrowing,
		sharedLocks:    make(map[common.RID]struct{}),
		exclusiveLocks: make(map[common.RID]struct{}),
		deletedPageSet: make(map[common.PageId]struct{}),
		prevLsn:        common.InvalidLsn,
	}
}

func (txn *Transaction) Id() common.TxnId { return txn.id }

func (txn *Transaction) State() TransactionState {
	txn.mu.Lock()
	defer txn.mu.Unlock()
	return txn.state
}

func (txn *Transaction) SetState(state TransactionState) {
	txn.mu.Lock()
	defer txn.mu.Unlock()
	txn.state = state
}

func (txn *Transaction) SharedLockSet() map[common.RID]struct{} { return txn.sharedLocks }

func (txn *Transaction) ExclusiveLockSet() map[common.RID]struct{} { return txn.exclusiveLocks }

// PrevLsn is the LSN of the last log record this transaction appended,
// used to thread its undo chain during recovery.
func (txn *Transaction) PrevLsn() common.Lsn { return txn.prevLsn }

func (txn *Transaction) SetPrevLsn(lsn common.Lsn) { txn.prevLsn = lsn }

func (txn *Transaction) AddToPageSet(page *disk.Page) {
	txn.pageSet = append(txn.pageSet, page)
}

func (txn *Transaction) PageSet() []*disk.Page { return txn.pageSet }

func (txn *Transaction) ClearPageSet() { txn.pageSet = nil }

func (txn *Transaction) AddToDeletedPageSet(pageId common.PageId) {
	txn.deletedPageSet[pageId] = struct{}{}
}

func (txn *Transaction) DeletedPageSet() map[common.PageId]struct{} { return txn.deletedPageSet }

func (txn *Transaction) ClearDeletedPageSet() {
	txn.deletedPageSet = make(map[common.PageId]struct{})
}
