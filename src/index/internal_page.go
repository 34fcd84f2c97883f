package index

import (
	"cmp"
	"math"
	"unsafe"

	"simple-db-golang/src/common"
)

// internalEntry is one (key, child page id) slot. Slot 0's key is never
// read: it exists only to keep the array densely packed alongside a
// value, per the spec's "first slot's value with no associated key".
type internalEntry[K cmp.Ordered] struct {
	key   K
	value common.PageId
}

type InternalPage[K cmp.Ordered] struct {
	typ      pageType
	size     int32
	maxSize  int32
	pageId   common.PageId
	parentId common.PageId
	ptr      struct{}
}

func internalMaxSize[K cmp.Ordered](pageSize int) int32 {
	var hdr InternalPage[K]
	var e internalEntry[K]
	headerSize := int(unsafe.Offsetof(hdr.ptr))
	entrySize := int(unsafe.Sizeof(e))
	return int32(pageSize-headerSize)/int32(entrySize) - 1
}

func createInternalPage[K cmp.Ordered](data []byte) *InternalPage[K] {
	return (*InternalPage[K])(unsafe.Pointer(&data[0]))
}

func (ip *InternalPage[K]) init(pageId, parentId common.PageId, pageSize int) {
	ip.typ = internalPageType
	ip.size = 0
	ip.maxSize = internalMaxSize[K](pageSize)
	ip.pageId = pageId
	ip.parentId = parentId
}

func (ip *InternalPage[K]) entries() []internalEntry[K] {
	return (*(*[math.MaxInt32]internalEntry[K])(unsafe.Pointer(&ip.ptr)))[:int(ip.size)]
}

func (ip *InternalPage[K]) rawEntries() []internalEntry[K] {
	return (*(*[math.MaxInt32]internalEntry[K])(unsafe.Pointer(&ip.ptr)))[:int(ip.maxSize)+1]
}

func (ip *InternalPage[K]) Size() int32           { return ip.size }
func (ip *InternalPage[K]) MaxSize() int32        { return ip.maxSize }
func (ip *InternalPage[K]) PageId() common.PageId { return ip.pageId }
func (ip *InternalPage[K]) ParentId() common.PageId { return ip.parentId }
func (ip *InternalPage[K]) SetParentId(id common.PageId) { ip.parentId = id }

func (ip *InternalPage[K]) KeyAt(i int) K { return ip.entries()[i].key }

func (ip *InternalPage[K]) SetKeyAt(i int, k K) {
	raw := ip.rawEntries()
	raw[i].key = k
}

func (ip *InternalPage[K]) ValueAt(i int) common.PageId { return ip.entries()[i].value }

// ValueIndex returns the slot holding child, or -1.
func (ip *InternalPage[K]) ValueIndex(child common.PageId) int {
	for i, e := range ip.entries() {
		if e.value == child {
			return i
		}
	}
	return -1
}

// Lookup runs binary search over keys[1:size) for the largest key <= k
// and returns the associated child page id (slot 0 has no key and is the
// fallback for k smaller than every real key).
func (ip *InternalPage[K]) Lookup(k K) common.PageId {
	entries := ip.entries()
	lo, hi := 1, len(entries)
	for lo < hi {
		mid := (lo + hi) / 2
		if entries[mid].key <= k {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return entries[lo-1].value
}

// PopulateNewRoot sets up a brand new root with two children: slot 0
// carries oldValue with no key, slot 1 carries (key, newValue).
func (ip *InternalPage[K]) PopulateNewRoot(oldValue common.PageId, key K, newValue common.PageId) {
	raw := ip.rawEntries()
	raw[0] = internalEntry[K]{value: oldValue}
	raw[1] = internalEntry[K]{key: key, value: newValue}
	ip.size = 2
}

// InsertNodeAfter inserts (key, newValue) immediately after the slot
// whose value is oldValue. Returns the new size.
func (ip *InternalPage[K]) InsertNodeAfter(oldValue common.PageId, key K, newValue common.PageId) int32 {
	idx := ip.ValueIndex(oldValue)
	raw := ip.rawEntries()
	for i := int(ip.size); i > idx+1; i-- {
		raw[i] = raw[i-1]
	}
	raw[idx+1] = internalEntry[K]{key: key, value: newValue}
	ip.size++
	return ip.size
}

// Remove deletes the slot at index i.
func (ip *InternalPage[K]) Remove(i int) {
	raw := ip.rawEntries()
	for j := i; j < int(ip.size)-1; j++ {
		raw[j] = raw[j+1]
	}
	ip.size--
}

// RemoveAndReturnOnlyChild is used by adjust-root when the root collapses
// to a single child.
func (ip *InternalPage[K]) RemoveAndReturnOnlyChild() common.PageId {
	return ip.entries()[0].value
}

// MoveAllTo merges this page's entries into dst (its left neighbor),
// pulling the separator key down from the parent for the first migrated
// slot, per the spec's internal-coalesce rule.
func (ip *InternalPage[K]) MoveAllTo(dst *InternalPage[K], separatorKey K) {
	entries := ip.entries()
	dstRaw := dst.rawEntries()
	dstRaw[dst.size] = internalEntry[K]{key: separatorKey, value: entries[0].value}
	copy(dstRaw[dst.size+1:int(dst.size)+len(entries)], entries[1:])
	dst.size += ip.size
	ip.size = 0
}

// MoveFirstToEndOf redistributes this page's first child onto the end of
// dst, pulling down separatorKey (the parent's separator between the two
// pages) as the moved entry's new key and leaving dst's caller to push
// this page's (now-first) key back up as the new separator.
func (ip *InternalPage[K]) MoveFirstToEndOf(dst *InternalPage[K], separatorKey K) {
	moved := ip.entries()[0]
	for i := 0; i < int(ip.size)-1; i++ {
		raw := ip.rawEntries()
		raw[i] = raw[i+1]
	}
	ip.size--
	dstRaw := dst.rawEntries()
	dstRaw[dst.size] = internalEntry[K]{key: separatorKey, value: moved.value}
	dst.size++
}

// MoveLastToFrontOf redistributes this page's last child onto the front
// of dst, with separatorKey (the parent's separator) becoming dst's new
// slot-1 key. Returns moved's original key, the separator this page kept
// between its new last child and the one just moved out -- the caller
// must push that up as the new parent separator between this page and
// dst, since dst's slot-0 key is unused and cannot carry it.
func (ip *InternalPage[K]) MoveLastToFrontOf(dst *InternalPage[K], separatorKey K) K {
	moved := ip.entries()[ip.size-1]
	ip.size--
	dstRaw := dst.rawEntries()
	for i := int(dst.size); i > 0; i-- {
		dstRaw[i] = dstRaw[i-1]
	}
	dstRaw[0] = internalEntry[K]{value: moved.value}
	dstRaw[1].key = separatorKey
	dst.size++
	return moved.key
}
