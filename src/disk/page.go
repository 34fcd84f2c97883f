package disk

import (
	"simple-db-golang/src/common"
	"sync"
)

// Page is a frame: a fixed-size in-memory buffer currently holding (or
// about to hold) the page identified by pageId. The embedded RWMutex is
// the frame's latch (short-duration, physical), never held across I/O or
// logical lock waits -- see spec.md section 5.
type Page struct {
	data     []byte
	pageId   common.PageId
	pinCount int
	isDirty  bool
	lsn      common.Lsn
	sync.RWMutex
}

func (p *Page) Data() []byte { return p.data }

func (p *Page) PageId() common.PageId { return p.pageId }

func (p *Page) PinCount() int { return p.pinCount }

func (p *Page) IsDirty() bool { return p.isDirty }

// Lsn returns the log sequence number of the last log record applied to
// this page's contents. The buffer pool manager forces the log up to this
// LSN before evicting a dirty frame (the WAL rule).
func (p *Page) Lsn() common.Lsn { return p.lsn }

// SetLsn records the LSN of the most recent mutation applied to this page.
// Callers that mutate a page's payload and log the mutation must call this
// before unpinning the page dirty.
func (p *Page) SetLsn(lsn common.Lsn) { p.lsn = lsn }
