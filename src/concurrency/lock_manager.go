package concurrency

import (
	"container/list"
	"sync"

	log "github.com/sirupsen/logrus"

	"simple-db-golang/src/common"
)

type LockMode int32

const (
	LockShared LockMode = iota
	LockExclusive
	LockUpgrading
)

// txItem is one entry in a record's wait queue: a transaction that either
// holds the lock (granted) or is blocked on cond waiting for it.
type txItem struct {
	tid     common.TxnId
	mode    LockMode
	granted bool
	mu      sync.Mutex
	cond    *sync.Cond
}

func newTxItem(tid common.TxnId, mode LockMode, granted bool) *txItem {
	item := &txItem{tid: tid, mode: mode, granted: granted}
	item.cond = sync.NewCond(&item.mu)
	return item
}

func (item *txItem) wait() {
	item.mu.Lock()
	for !item.granted {
		item.cond.Wait()
	}
	item.mu.Unlock()
}

func (item *txItem) grant() {
	item.mu.Lock()
	item.granted = true
	item.cond.Signal()
	item.mu.Unlock()
}

// txList is the wait queue for a single record id.
type txList struct {
	mu           sync.Mutex
	locks        list.List // of *txItem
	hasUpgrading bool
}

// checkCanGrant mirrors bustub's rule: an empty queue always grants; a
// queue with a granted SHARED tail grants another SHARED; anything else
// (an EXCLUSIVE holder, or a not-yet-granted tail) must wait or die.
func (tl *txList) checkCanGrant(mode LockMode) bool {
	if tl.locks.Len() == 0 {
		return true
	}
	last := tl.locks.Back().Value.(*txItem)
	if mode == LockShared {
		return last.granted && last.mode == LockShared
	}
	return false
}

func (tl *txList) back() *txItem {
	return tl.locks.Back().Value.(*txItem)
}

// LockManager is a tuple-level lock manager using wait-die to prevent
// deadlocks: a request that cannot be granted at once waits when the caller
// is older than the transaction at the tail of the queue, and the caller
// aborts (dies) when it is younger, so a younger transaction never waits on
// an older one.
type LockManager struct {
	strict2PL bool

	mu        sync.Mutex
	lockTable map[common.RID]*txList
}

func NewLockManager(strict2PL bool) *LockManager {
	return &LockManager{
		strict2PL: strict2PL,
		lockTable: make(map[common.RID]*txList),
	}
}

func (lm *LockManager) LockShared(txn *Transaction, rid common.RID) bool {
	return lm.lockTemplate(txn, rid, LockShared)
}

func (lm *LockManager) LockExclusive(txn *Transaction, rid common.RID) bool {
	return lm.lockTemplate(txn, rid, LockExclusive)
}

func (lm *LockManager) LockUpgrade(txn *Transaction, rid common.RID) bool {
	return lm.lockTemplate(txn, rid, LockUpgrading)
}

func (lm *LockManager) lockTemplate(txn *Transaction, rid common.RID, mode LockMode) bool {
	// step 1: locking is only legal while growing.
	if txn.State() != StateGrowing {
		txn.SetState(StateAborted)
		return false
	}

	lm.mu.Lock()
	tl, ok := lm.lockTable[rid]
	if !ok {
		tl = &txList{}
		lm.lockTable[rid] = tl
	}
	tl.mu.Lock()
	lm.mu.Unlock()

	// step 2: an upgrade first removes the caller's existing shared grant.
	if mode == LockUpgrading {
		if tl.hasUpgrading {
			tl.mu.Unlock()
			txn.SetState(StateAborted)
			return false
		}
		var found *list.Element
		for e := tl.locks.Front(); e != nil; e = e.Next() {
			if e.Value.(*txItem).tid == txn.Id() {
				found = e
				break
			}
		}
		item, matched := (*txItem)(nil), false
		if found != nil {
			item = found.Value.(*txItem)
			matched = item.mode == LockShared && item.granted
		}
		if !matched {
			tl.mu.Unlock()
			txn.SetState(StateAborted)
			return false
		}
		tl.locks.Remove(found)
		delete(txn.SharedLockSet(), rid)
	}

	// step 3: wait-die. A request that cannot be granted immediately
	// waits only if the caller is older than the current tail holder;
	// otherwise the caller dies (aborts) rather than risk a cycle.
	canGrant := tl.checkCanGrant(mode)
	if !canGrant && tl.back().tid < txn.Id() {
		tl.mu.Unlock()
		txn.SetState(StateAborted)
		return false
	}

	// step 4: enqueue, granted or blocked.
	grantedMode := mode
	if mode == LockUpgrading && canGrant {
		grantedMode = LockExclusive
	}
	item := newTxItem(txn.Id(), grantedMode, canGrant)
	tl.locks.PushBack(item)
	if !canGrant {
		if mode == LockUpgrading {
			tl.hasUpgrading = true
		}
		tl.mu.Unlock()
		item.wait()
	} else {
		tl.mu.Unlock()
	}

	if grantedMode == LockShared {
		txn.SharedLockSet()[rid] = struct{}{}
	} else {
		txn.ExclusiveLockSet()[rid] = struct{}{}
	}
	return true
}

// Unlock releases the caller's lock on rid and grants the next eligible
// waiters: consecutive SHARED entries, stopping at (and granting) the
// first EXCLUSIVE or UPGRADING entry.
func (lm *LockManager) Unlock(txn *Transaction, rid common.RID) bool {
	if lm.strict2PL {
		state := txn.State()
		if state != StateCommitted && state != StateAborted {
			txn.SetState(StateAborted)
			return false
		}
	} else if txn.State() == StateGrowing {
		txn.SetState(StateShrinking)
	}

	lm.mu.Lock()
	tl, ok := lm.lockTable[rid]
	if !ok {
		lm.mu.Unlock()
		log.Warnf("Unlock called for rid %s with no lock table entry.", rid.String())
		return false
	}
	tl.mu.Lock()

	var found *list.Element
	for e := tl.locks.Front(); e != nil; e = e.Next() {
		if e.Value.(*txItem).tid == txn.Id() {
			found = e
			break
		}
	}
	if found == nil {
		tl.mu.Unlock()
		lm.mu.Unlock()
		log.Warnf("Unlock called for rid %s by a transaction holding no lock.", rid.String())
		return false
	}
	item := found.Value.(*txItem)
	if item.mode == LockShared {
		delete(txn.SharedLockSet(), rid)
	} else {
		delete(txn.ExclusiveLockSet(), rid)
	}
	tl.locks.Remove(found)

	if tl.locks.Len() == 0 {
		delete(lm.lockTable, rid)
		tl.mu.Unlock()
		lm.mu.Unlock()
		return true
	}
	lm.mu.Unlock()

	for e := tl.locks.Front(); e != nil; e = e.Next() {
		next := e.Value.(*txItem)
		if next.granted {
			break
		}
		next.grant()
		if next.mode == LockShared {
			continue
		}
		if next.mode == LockUpgrading {
			tl.hasUpgrading = false
			next.mode = LockExclusive
		}
		break
	}
	tl.mu.Unlock()
	return true
}
