package index

import (
	"testing"

	"github.com/stretchr/testify/require"

	"simple-db-golang/src/common"
)

func TestInternalPage_PopulateAndLookup(t *testing.T) {
	ip := createInternalPage[int64](newLeafBuf())
	ip.init(common.PageId(1), invalidPageId, common.PageSize)
	ip.PopulateNewRoot(common.PageId(10), 20, common.PageId(11))

	require.Equal(t, int32(2), ip.Size())
	require.Equal(t, common.PageId(10), ip.Lookup(5))
	require.Equal(t, common.PageId(10), ip.Lookup(19))
	require.Equal(t, common.PageId(11), ip.Lookup(20))
	require.Equal(t, common.PageId(11), ip.Lookup(100))

	newSize := ip.InsertNodeAfter(common.PageId(11), 40, common.PageId(12))
	require.Equal(t, int32(3), newSize)
	require.Equal(t, common.PageId(12), ip.Lookup(50))
	require.Equal(t, 2, ip.ValueIndex(common.PageId(12)))
}

func TestInternalPage_RemoveAndOnlyChild(t *testing.T) {
	ip := createInternalPage[int64](newLeafBuf())
	ip.init(common.PageId(1), invalidPageId, common.PageSize)
	ip.PopulateNewRoot(common.PageId(10), 20, common.PageId(11))

	ip.Remove(1)
	require.Equal(t, int32(1), ip.Size())
	require.Equal(t, common.PageId(10), ip.RemoveAndReturnOnlyChild())
}

func TestInternalPage_MergeAndRedistribute(t *testing.T) {
	left := createInternalPage[int64](newLeafBuf())
	left.init(common.PageId(1), invalidPageId, common.PageSize)
	left.PopulateNewRoot(common.PageId(100), 10, common.PageId(101))

	right := createInternalPage[int64](newLeafBuf())
	right.init(common.PageId(2), invalidPageId, common.PageSize)
	right.PopulateNewRoot(common.PageId(200), 30, common.PageId(201))

	right.MoveFirstToEndOf(left, 20)
	require.Equal(t, int32(3), left.Size())
	require.Equal(t, int32(1), right.Size())
	require.Equal(t, common.PageId(200), left.ValueAt(2))
	require.Equal(t, int64(20), left.KeyAt(2))

	left.MoveLastToFrontOf(right, 40)
	require.Equal(t, int32(2), left.Size())
	require.Equal(t, int32(2), right.Size())
	require.Equal(t, common.PageId(200), right.ValueAt(0))
	require.Equal(t, int64(40), right.KeyAt(1))

	right.MoveAllTo(left, 99)
	require.Equal(t, int32(4), left.Size())
	require.Equal(t, int32(0), right.Size())
}
