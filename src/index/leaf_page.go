package index

import (
	"cmp"
	"math"
	"unsafe"

	"simple-db-golang/src/common"
)

// leafEntry is one (key, value) slot of a leaf page, value being the
// tuple's record id in the table heap this index points into.
type leafEntry[K cmp.Ordered] struct {
	key   K
	value common.RID
}

// LeafPage overlays a buffer pool frame holding the bottom level of the
// tree. Entries are kept sorted by key; nextPageId chains leaves in
// ascending order for range scans.
type LeafPage[K cmp.Ordered] struct {
	typ        pageType
	size       int32
	maxSize    int32
	pageId     common.PageId
	parentId   common.PageId
	nextPageId common.PageId
	ptr        struct{}
}

func leafMaxSize[K cmp.Ordered](pageSize int) int32 {
	var hdr LeafPage[K]
	var e leafEntry[K]
	headerSize := int(unsafe.Offsetof(hdr.ptr))
	entrySize := int(unsafe.Sizeof(e))
	// Leave one slot of headroom so an insert can always land before the
	// page decides whether it needs to split.
	return int32(pageSize-headerSize)/int32(entrySize) - 1
}

func createLeafPage[K cmp.Ordered](data []byte) *LeafPage[K] {
	return (*LeafPage[K])(unsafe.Pointer(&data[0]))
}

func (lp *LeafPage[K]) init(pageId, parentId common.PageId, pageSize int) {
	lp.typ = leafPageType
	lp.size = 0
	lp.maxSize = leafMaxSize[K](pageSize)
	lp.pageId = pageId
	lp.parentId = parentId
	lp.nextPageId = invalidPageId
}

func (lp *LeafPage[K]) entries() []leafEntry[K] {
	return (*(*[math.MaxInt32]leafEntry[K])(unsafe.Pointer(&lp.ptr)))[:int(lp.size)]
}

func (lp *LeafPage[K]) Size() int32           { return lp.size }
func (lp *LeafPage[K]) MaxSize() int32        { return lp.maxSize }
func (lp *LeafPage[K]) PageId() common.PageId { return lp.pageId }
func (lp *LeafPage[K]) ParentId() common.PageId { return lp.parentId }
func (lp *LeafPage[K]) SetParentId(id common.PageId) { lp.parentId = id }
func (lp *LeafPage[K]) NextPageId() common.PageId { return lp.nextPageId }
func (lp *LeafPage[K]) SetNextPageId(id common.PageId) { lp.nextPageId = id }
func (lp *LeafPage[K]) IsRoot() bool { return lp.parentId == invalidPageId }

// KeyIndex returns the first index whose key is >= k (binary search).
func (lp *LeafPage[K]) KeyIndex(k K) int {
	entries := lp.entries()
	lo, hi := 0, len(entries)
	for lo < hi {
		mid := (lo + hi) / 2
		if entries[mid].key < k {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

func (lp *LeafPage[K]) KeyAt(i int) K { return lp.entries()[i].key }

func (lp *LeafPage[K]) ValueAt(i int) common.RID { return lp.entries()[i].value }

// Lookup returns the value for k, if present.
func (lp *LeafPage[K]) Lookup(k K) (common.RID, bool) {
	idx := lp.KeyIndex(k)
	entries := lp.entries()
	if idx < len(entries) && entries[idx].key == k {
		return entries[idx].value, true
	}
	return common.RID{}, false
}

// Insert adds (k, v) in sorted position; caller must already know k is
// absent and the page has room. Returns the new size.
func (lp *LeafPage[K]) Insert(k K, v common.RID) int32 {
	idx := lp.KeyIndex(k)
	lp.shiftRight(idx)
	raw := lp.rawEntries()
	raw[idx] = leafEntry[K]{key: k, value: v}
	lp.size++
	return lp.size
}

// rawEntries exposes capacity beyond size, needed while shifting during
// insert/delete.
func (lp *LeafPage[K]) rawEntries() []leafEntry[K] {
	return (*(*[math.MaxInt32]leafEntry[K])(unsafe.Pointer(&lp.ptr)))[:int(lp.maxSize)+1]
}

func (lp *LeafPage[K]) shiftRight(from int) {
	raw := lp.rawEntries()
	for i := int(lp.size); i > from; i-- {
		raw[i] = raw[i-1]
	}
}

func (lp *LeafPage[K]) shiftLeft(from int) {
	raw := lp.rawEntries()
	for i := from; i < int(lp.size)-1; i++ {
		raw[i] = raw[i+1]
	}
}

// Delete removes k if present, returning the new size and whether it was found.
func (lp *LeafPage[K]) Delete(k K) (int32, bool) {
	idx := lp.KeyIndex(k)
	entries := lp.entries()
	if idx >= len(entries) || entries[idx].key != k {
		return lp.size, false
	}
	lp.shiftLeft(idx)
	lp.size--
	return lp.size, true
}

// MoveHalfTo splits this (now-overflowing) leaf's upper half into dst,
// per the spec's leaf-split rule.
func (lp *LeafPage[K]) MoveHalfTo(dst *LeafPage[K]) {
	total := int(lp.size)
	splitIdx := (total + 1) / 2
	entries := lp.entries()
	dstRaw := dst.rawEntries()
	copy(dstRaw[:total-splitIdx], entries[splitIdx:total])
	dst.size = int32(total - splitIdx)
	lp.size = int32(splitIdx)

	dst.nextPageId = lp.nextPageId
	lp.nextPageId = dst.pageId
}

// MoveAllTo appends all of this leaf's entries to dst (a coalesce into
// the left neighbor) and relinks dst.next past this now-empty leaf.
func (lp *LeafPage[K]) MoveAllTo(dst *LeafPage[K]) {
	entries := lp.entries()
	dstRaw := dst.rawEntries()
	copy(dstRaw[dst.size:int(dst.size)+len(entries)], entries)
	dst.size += lp.size
	dst.nextPageId = lp.nextPageId
	lp.size = 0
}

// MoveFirstToEndOf moves this leaf's first entry onto the end of dst
// (redistribute from the right sibling).
func (lp *LeafPage[K]) MoveFirstToEndOf(dst *LeafPage[K]) {
	first := lp.entries()[0]
	lp.shiftLeft(0)
	lp.size--
	dstRaw := dst.rawEntries()
	dstRaw[dst.size] = first
	dst.size++
}

// MoveLastToFrontOf moves this leaf's last entry onto the front of dst
// (redistribute from the left sibling).
func (lp *LeafPage[K]) MoveLastToFrontOf(dst *LeafPage[K]) {
	last := lp.entries()[lp.size-1]
	lp.size--
	dst.shiftRight(0)
	dstRaw := dst.rawEntries()
	dstRaw[0] = last
	dst.size++
}
