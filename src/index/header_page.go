package index

import (
	"math"
	"unsafe"

	"simple-db-golang/src/common"
)

const nameSize = 32

// indexRecord is one (index name, root page id) entry. Adapted from the
// table heap's own page-info record list: same push/find/remove-by-linear-
// scan technique, a fixed-size key instead of a page id.
type indexRecord struct {
	name     [nameSize]byte
	rootId   common.PageId
}

// HeaderPage maps index names to their root page id, so a process can find
// every index's root again after a restart. Its page id is not fixed at
// common.HeaderPageId: NewBPlusTree takes it as a parameter, and the engine
// keeps it on page 1 (page 0 holds the table heap's header page).
type HeaderPage struct {
	numRecords int32
	ptr        struct{}
}

func createHeaderPage(data []byte) *HeaderPage {
	return (*HeaderPage)(unsafe.Pointer(&data[0]))
}

// InitHeaderPage formats a freshly allocated page as an empty index
// header page. Callers bootstrapping a new database call this once,
// before any BPlusTree is constructed over the page, the same way
// NewTableHeap formats its own header page inline on creation.
func InitHeaderPage(data []byte) {
	createHeaderPage(data).init()
}

func (hp *HeaderPage) init() {
	hp.numRecords = 0
}

func (hp *HeaderPage) records() []indexRecord {
	return (*(*[math.MaxInt32]indexRecord)(unsafe.Pointer(&hp.ptr)))[:int(hp.numRecords)]
}

func packName(name string) [nameSize]byte {
	var buf [nameSize]byte
	copy(buf[:], name)
	return buf
}

func unpackName(buf [nameSize]byte) string {
	n := 0
	for n < len(buf) && buf[n] != 0 {
		n++
	}
	return string(buf[:n])
}

// GetRootId returns the root page id registered for name, if any.
func (hp *HeaderPage) GetRootId(name string) (common.PageId, bool) {
	key := packName(name)
	for _, rec := range hp.records() {
		if rec.name == key {
			return rec.rootId, true
		}
	}
	return common.InvalidPageId, false
}

// InsertRecord registers a brand new index name. Returns false if name is
// already registered.
func (hp *HeaderPage) InsertRecord(name string, rootId common.PageId) bool {
	if _, ok := hp.GetRootId(name); ok {
		return false
	}
	raw := (*(*[math.MaxInt32]indexRecord)(unsafe.Pointer(&hp.ptr)))[: hp.numRecords+1]
	raw[hp.numRecords] = indexRecord{name: packName(name), rootId: rootId}
	hp.numRecords++
	return true
}

// UpdateRecord changes the root page id of an already-registered index,
// used whenever insert-into-parent grows a new root.
func (hp *HeaderPage) UpdateRecord(name string, rootId common.PageId) bool {
	key := packName(name)
	raw := (*(*[math.MaxInt32]indexRecord)(unsafe.Pointer(&hp.ptr)))[:hp.numRecords]
	for i := range raw {
		if raw[i].name == key {
			raw[i].rootId = rootId
			return true
		}
	}
	return false
}

// DeleteRecord drops name's entry.
func (hp *HeaderPage) DeleteRecord(name string) bool {
	key := packName(name)
	raw := (*(*[math.MaxInt32]indexRecord)(unsafe.Pointer(&hp.ptr)))[:hp.numRecords]
	idx := -1
	for i := range raw {
		if raw[i].name == key {
			idx = i
			break
		}
	}
	if idx == -1 {
		return false
	}
	for i := idx; i < int(hp.numRecords)-1; i++ {
		raw[i] = raw[i+1]
	}
	hp.numRecords--
	return true
}
