package index

import (
	"unsafe"

	"simple-db-golang/src/common"
)

// pageHeader mirrors the fixed-size prefix shared by LeafPage[K] and
// InternalPage[K] for any K: typ, size, maxSize, pageId, parentId appear
// in the same order with the same types in both generic structs, so this
// non-generic view lets dispatch code (split's child reparenting, the
// crabbing safety check) read and write those fields without knowing K.
type pageHeader struct {
	typ      pageType
	size     int32
	maxSize  int32
	pageId   common.PageId
	parentId common.PageId
}

func headerOf(data []byte) *pageHeader {
	return (*pageHeader)(unsafe.Pointer(&data[0]))
}

func (h *pageHeader) Type() pageType          { return h.typ }
func (h *pageHeader) Size() int32             { return h.size }
func (h *pageHeader) MaxSize() int32          { return h.maxSize }
func (h *pageHeader) PageId() common.PageId   { return h.pageId }
func (h *pageHeader) ParentId() common.PageId { return h.parentId }
func (h *pageHeader) SetParentId(id common.PageId) { h.parentId = id }

// isSafe reports whether a node (leaf or internal) can absorb op without
// forcing a structural change its parent must react to.
func (h *pageHeader) isSafe(op opKind) bool {
	if h.typ == leafPageType {
		return isSafeLeaf(h.size, h.maxSize, op)
	}
	return isSafeInternal(h.size, h.maxSize, op)
}
