package index

import (
	"cmp"

	"simple-db-golang/src/common"
	"simple-db-golang/src/disk"
)

// IndexIterator walks a leaf chain in ascending key order, read-latching
// one leaf at a time and releasing it before fetching the next.
type IndexIterator[K cmp.Ordered] struct {
	bufferPoolManager *disk.BufferPoolManager
	page              *disk.Page
	leaf              *LeafPage[K]
	index             int
}

func newIndexIterator[K cmp.Ordered](bufferPoolManager *disk.BufferPoolManager, page *disk.Page, index int) *IndexIterator[K] {
	return &IndexIterator[K]{
		bufferPoolManager: bufferPoolManager,
		page:              page,
		leaf:              createLeafPage[K](page.Data()),
		index:             index,
	}
}

// Begin returns an iterator positioned at the smallest key in the tree.
func (t *BPlusTree[K]) Begin() *IndexIterator[K] {
	if t.IsEmpty() {
		return &IndexIterator[K]{}
	}
	leafPage, _ := t.findLeftmostLeafPage()
	return newIndexIterator[K](t.bufferPoolManager, leafPage, 0)
}

// BeginAt returns an iterator positioned at the first key >= k.
func (t *BPlusTree[K]) BeginAt(k K) *IndexIterator[K] {
	if t.IsEmpty() {
		return &IndexIterator[K]{}
	}
	leafPage, leaf := t.findLeafPage(k, opRead, nil)
	index := leaf.KeyIndex(k)
	it := newIndexIterator[K](t.bufferPoolManager, leafPage, index)
	if index >= int(leaf.Size()) {
		// k is past every key in this leaf; cross into the next one (or
		// mark end) the same way Next() does.
		it.Next()
	}
	return it
}

// IsEnd reports whether the iterator has advanced past the last entry.
func (it *IndexIterator[K]) IsEnd() bool {
	return it.leaf == nil
}

// Item returns the (key, value) pair at the iterator's current position.
func (it *IndexIterator[K]) Item() (K, common.RID) {
	return it.leaf.KeyAt(it.index), it.leaf.ValueAt(it.index)
}

// Next advances the iterator, crossing into the next leaf (and releasing
// the current one) when the current leaf is exhausted.
func (it *IndexIterator[K]) Next() {
	it.index++
	if it.index < int(it.leaf.Size()) {
		return
	}

	nextId := it.leaf.NextPageId()
	it.page.RUnlock()
	it.bufferPoolManager.UnpinPage(it.page.PageId(), false)

	if nextId == invalidPageId {
		it.page = nil
		it.leaf = nil
		return
	}

	nextPage, err := it.bufferPoolManager.FetchPage(nextId)
	if err != nil {
		it.page = nil
		it.leaf = nil
		return
	}
	nextPage.RLock()
	it.page = nextPage
	it.leaf = createLeafPage[K](nextPage.Data())
	it.index = 0
}

// Close releases the iterator's currently held leaf latch and pin, for
// callers that stop iterating before reaching the end.
func (it *IndexIterator[K]) Close() {
	if it.page == nil {
		return
	}
	it.page.RUnlock()
	it.bufferPoolManager.UnpinPage(it.page.PageId(), false)
	it.page = nil
	it.leaf = nil
}
