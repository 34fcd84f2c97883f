package concurrency

import (
	"testing"

	"github.com/stretchr/testify/require"

	"simple-db-golang/src/common"
)

func TestTransaction_IdsIncreaseMonotonically(t *testing.T) {
	a := NewTransaction()
	b := NewTransaction()
	require.Less(t, a.Id(), b.Id())
	require.Equal(t, StateGrowing, a.State())
}

func TestTransaction_PageSetAndDeletedPageSet(t *testing.T) {
	txn := NewTransaction()
	txn.AddToDeletedPageSet(common.PageId(3))
	txn.AddToDeletedPageSet(common.PageId(4))
	require.Len(t, txn.DeletedPageSet(), 2)
	require.Contains(t, txn.DeletedPageSet(), common.PageId(3))

	txn.ClearDeletedPageSet()
	require.Empty(t, txn.DeletedPageSet())
}

func TestTransaction_PrevLsnDefaultsToInvalid(t *testing.T) {
	txn := NewTransaction()
	require.Equal(t, common.InvalidLsn, txn.PrevLsn())
	txn.SetPrevLsn(common.Lsn(42))
	require.Equal(t, common.Lsn(42), txn.PrevLsn())
}
