package index

import (
	"cmp"

	log "github.com/sirupsen/logrus"

	"simple-db-golang/src/common"
)

// Check walks the whole tree and reports whether every page's entries
// are sorted and within [minSize, maxSize], and every leaf is at the same
// depth. Intended for tests, not the hot path.
func (t *BPlusTree[K]) Check() bool {
	if t.IsEmpty() {
		return true
	}
	_, sizeOk := t.isPageCorrect(t.RootPageId())
	balanced := t.isBalanced(t.RootPageId()) >= 0
	if !sizeOk {
		log.Warn("B+Tree check failed: page out of order or out of size bounds.")
	}
	if !balanced {
		log.Warn("B+Tree check failed: leaves at uneven depth.")
	}
	return sizeOk && balanced
}

// isBalanced returns every leaf's depth below pageId if they all agree,
// or -1 if they don't.
func (t *BPlusTree[K]) isBalanced(pageId common.PageId) int {
	page, err := t.bufferPoolManager.FetchPage(pageId)
	if err != nil {
		log.WithError(err).Fatalf("Cannot fetch page %d during balance check.", pageId)
	}
	defer t.bufferPoolManager.UnpinPage(pageId, false)

	hdr := headerOf(page.Data())
	if hdr.Type() == leafPageType {
		return 0
	}

	internal := createInternalPage[K](page.Data())
	depth := -2
	for i := 0; i < int(internal.Size()); i++ {
		cur := t.isBalanced(internal.ValueAt(i))
		if cur < 0 {
			return -1
		}
		if depth == -2 {
			depth = cur
		} else if depth != cur {
			return -1
		}
	}
	return depth + 1
}

type keyRange[K cmp.Ordered] struct {
	lo, hi K
}

// isPageCorrect recursively checks sort order and size bounds for pageId
// and its subtree, returning the subtree's [smallest, largest] key range.
func (t *BPlusTree[K]) isPageCorrect(pageId common.PageId) (keyRange[K], bool) {
	page, err := t.bufferPoolManager.FetchPage(pageId)
	if err != nil {
		log.WithError(err).Fatalf("Cannot fetch page %d during correctness check.", pageId)
	}
	defer t.bufferPoolManager.UnpinPage(pageId, false)

	hdr := headerOf(page.Data())
	isRoot := hdr.ParentId() == invalidPageId

	if hdr.Type() == leafPageType {
		leaf := createLeafPage[K](page.Data())
		size := leaf.Size()
		ok := size <= leaf.MaxSize()
		if !isRoot {
			ok = ok && size >= leaf.MaxSize()/2
		}
		for i := 1; i < int(size); i++ {
			if !(leaf.KeyAt(i-1) < leaf.KeyAt(i)) {
				ok = false
			}
		}
		return keyRange[K]{leaf.KeyAt(0), leaf.KeyAt(int(size) - 1)}, ok
	}

	internal := createInternalPage[K](page.Data())
	size := internal.Size()
	minSize := (internal.MaxSize() + 1) / 2
	ok := size <= internal.MaxSize()
	if !isRoot {
		ok = ok && size >= minSize
	}

	first, childOk := t.isPageCorrect(internal.ValueAt(0))
	ok = ok && childOk
	left, last := first, first
	for i := 1; i < int(size); i++ {
		right, childOk := t.isPageCorrect(internal.ValueAt(i))
		ok = ok && childOk
		ok = ok && internal.KeyAt(i) > left.hi && internal.KeyAt(i) <= right.lo
		if i > 1 {
			ok = ok && internal.KeyAt(i-1) < internal.KeyAt(i)
		}
		left = right
		last = right
	}
	return keyRange[K]{first.lo, last.hi}, ok
}
