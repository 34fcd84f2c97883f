// Package index implements the concurrent B+Tree clustered index: two
// page layouts (leaf, internal) overlaid directly on buffer pool frames,
// crabbing-latch traversal, and the split/coalesce/redistribute/
// adjust-root structural modifications that keep the tree balanced.
package index

import (
	"unsafe"

	"simple-db-golang/src/common"
)

type pageType int32

const (
	invalidPageType pageType = iota
	leafPageType
	internalPageType
)

// pageTypeOf reads the tagging header field shared by both page layouts,
// letting a caller holding only a *disk.Page decide which overlay to use.
func pageTypeOf(data []byte) pageType {
	return *(*pageType)(unsafe.Pointer(&data[0]))
}

const invalidPageId = common.InvalidPageId
