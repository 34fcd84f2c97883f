package index

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"simple-db-golang/src/common"
	"simple-db-golang/src/disk"
)

func newTestTree(t *testing.T, name string) (*BPlusTree[int64], func()) {
	tmpFile := "tmp-index-" + name
	dm := disk.NewDiskManager(tmpFile)
	lru := disk.NewLRUReplacer()
	bpm := disk.NewBufferPoolManager(64, dm, lru)

	headerPage, err := bpm.NewPage()
	require.NoError(t, err)
	hp := createHeaderPage(headerPage.Data())
	hp.init()
	bpm.UnpinPage(headerPage.PageId(), true)

	tree := NewBPlusTree[int64](name, bpm, headerPage.PageId())
	cleanup := func() {
		dm.Close()
		os.Remove(tmpFile)
		os.Remove(tmpFile + ".log")
	}
	return tree, cleanup
}

func TestBPlusTree_InsertAndGet(t *testing.T) {
	tree, cleanup := newTestTree(t, "insert-get")
	defer cleanup()

	for i := int64(0); i < 200; i++ {
		ok := tree.Insert(i, common.RID{PageId: common.PageId(i), SlotNum: int(i)}, nil)
		require.True(t, ok)
	}

	for i := int64(0); i < 200; i++ {
		v, ok := tree.GetValue(i, nil)
		require.True(t, ok)
		require.Equal(t, common.RID{PageId: common.PageId(i), SlotNum: int(i)}, v)
	}

	_, ok := tree.GetValue(500, nil)
	require.False(t, ok)

	require.True(t, tree.Check())
}

func TestBPlusTree_DuplicateInsertFails(t *testing.T) {
	tree, cleanup := newTestTree(t, "dup")
	defer cleanup()

	require.True(t, tree.Insert(1, common.RID{PageId: 1}, nil))
	require.False(t, tree.Insert(1, common.RID{PageId: 2}, nil))
}

func TestBPlusTree_RemoveCausesMergeAndShrink(t *testing.T) {
	tree, cleanup := newTestTree(t, "remove")
	defer cleanup()

	const n = 300
	for i := int64(0); i < n; i++ {
		require.True(t, tree.Insert(i, common.RID{PageId: common.PageId(i)}, nil))
	}
	require.True(t, tree.Check())

	for i := int64(0); i < n; i += 2 {
		ok := tree.Remove(i, nil)
		require.True(t, ok)
	}
	require.True(t, tree.Check())

	for i := int64(0); i < n; i++ {
		_, ok := tree.GetValue(i, nil)
		require.Equal(t, i%2 == 1, ok)
	}

	for i := int64(1); i < n; i += 2 {
		require.True(t, tree.Remove(i, nil))
	}
	require.True(t, tree.IsEmpty())
}

func TestBPlusTree_Iterator(t *testing.T) {
	tree, cleanup := newTestTree(t, "iter")
	defer cleanup()

	keys := []int64{5, 1, 9, 3, 7, 2, 8, 4, 6}
	for _, k := range keys {
		require.True(t, tree.Insert(k, common.RID{PageId: common.PageId(k)}, nil))
	}

	it := tree.Begin()
	prev := int64(-1)
	count := 0
	for !it.IsEnd() {
		k, _ := it.Item()
		require.Greater(t, k, prev)
		prev = k
		count++
		it.Next()
	}
	require.Equal(t, len(keys), count)

	it2 := tree.BeginAt(5)
	k, _ := it2.Item()
	require.Equal(t, int64(5), k)
	it2.Close()
}
