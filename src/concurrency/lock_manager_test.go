package concurrency

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"simple-db-golang/src/common"
)

func TestLockManager_TwoSharedLocksCompatible(t *testing.T) {
	lm := NewLockManager(false)
	rid := common.RID{PageId: 1, SlotNum: 0}

	txn1 := NewTransaction()
	txn2 := NewTransaction()

	require.True(t, lm.LockShared(txn1, rid))
	require.True(t, lm.LockShared(txn2, rid))
	require.Contains(t, txn1.SharedLockSet(), rid)
	require.Contains(t, txn2.SharedLockSet(), rid)
}

func TestLockManager_YoungerRequesterDiesOnExclusiveHolder(t *testing.T) {
	lm := NewLockManager(false)
	rid := common.RID{PageId: 2, SlotNum: 0}

	older := NewTransaction()
	younger := NewTransaction()
	require.Less(t, older.Id(), younger.Id())

	require.True(t, lm.LockExclusive(older, rid))
	require.False(t, lm.LockExclusive(younger, rid))
	require.Equal(t, StateAborted, younger.State())
}

func TestLockManager_OlderRequesterWaitsForYoungerHolder(t *testing.T) {
	lm := NewLockManager(false)
	rid := common.RID{PageId: 3, SlotNum: 0}

	older := NewTransaction()
	younger := NewTransaction()
	require.Less(t, older.Id(), younger.Id())

	require.True(t, lm.LockExclusive(younger, rid))

	done := make(chan bool, 1)
	go func() {
		done <- lm.LockExclusive(older, rid)
	}()

	select {
	case <-done:
		t.Fatal("older transaction should block while younger holds the exclusive lock")
	case <-time.After(50 * time.Millisecond):
	}

	require.True(t, lm.Unlock(younger, rid))

	select {
	case ok := <-done:
		require.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("older transaction was never granted the lock")
	}
	require.Contains(t, older.ExclusiveLockSet(), rid)
}

func TestLockManager_UpgradeSharedToExclusive(t *testing.T) {
	lm := NewLockManager(false)
	rid := common.RID{PageId: 4, SlotNum: 0}

	txn := NewTransaction()
	require.True(t, lm.LockShared(txn, rid))
	require.True(t, lm.LockUpgrade(txn, rid))
	require.NotContains(t, txn.SharedLockSet(), rid)
	require.Contains(t, txn.ExclusiveLockSet(), rid)
}

func TestLockManager_DoubleUpgradeAborts(t *testing.T) {
	lm := NewLockManager(false)
	rid := common.RID{PageId: 5, SlotNum: 0}

	old := NewTransaction()
	mid := NewTransaction()
	young := NewTransaction()

	require.True(t, lm.LockShared(old, rid))
	require.True(t, lm.LockShared(mid, rid))
	require.True(t, lm.LockShared(young, rid))

	// old is older than both remaining holders, so its upgrade waits
	// rather than dies; it only becomes grantable once both shared
	// holders ahead of it in the queue release.
	done := make(chan bool, 1)
	go func() { done <- lm.LockUpgrade(old, rid) }()
	time.Sleep(20 * time.Millisecond)

	// a second upgrade request while one is already pending must abort.
	require.False(t, lm.LockUpgrade(mid, rid))
	require.Equal(t, StateAborted, mid.State())

	require.True(t, lm.Unlock(mid, rid))
	require.True(t, lm.Unlock(young, rid))
	select {
	case ok := <-done:
		require.True(t, ok)
		require.Contains(t, old.ExclusiveLockSet(), rid)
	case <-time.After(time.Second):
		t.Fatal("pending upgrade was never granted")
	}
}

func TestLockManager_LockingWhileShrinkingFails(t *testing.T) {
	lm := NewLockManager(false)
	rid := common.RID{PageId: 6, SlotNum: 0}

	txn := NewTransaction()
	txn.SetState(StateShrinking)
	require.False(t, lm.LockShared(txn, rid))
	require.Equal(t, StateAborted, txn.State())
}

func TestLockManager_UnlockGrantsNextWaiter(t *testing.T) {
	lm := NewLockManager(false)
	rid := common.RID{PageId: 7, SlotNum: 0}

	older := NewTransaction()
	younger := NewTransaction()
	require.Less(t, older.Id(), younger.Id())

	// younger holds the lock so the older requester waits rather than dies.
	require.True(t, lm.LockExclusive(younger, rid))

	done := make(chan bool, 1)
	go func() { done <- lm.LockShared(older, rid) }()
	time.Sleep(20 * time.Millisecond)

	require.True(t, lm.Unlock(younger, rid))
	select {
	case ok := <-done:
		require.True(t, ok)
		require.Contains(t, older.SharedLockSet(), rid)
	case <-time.After(time.Second):
		t.Fatal("waiter was never granted after unlock")
	}
}
