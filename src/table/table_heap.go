package table

import (
	"simple-db-golang/src/common"
	"simple-db-golang/src/concurrency"
	"simple-db-golang/src/disk"
	"simple-db-golang/src/logging"

	log "github.com/sirupsen/logrus"
)

// TableHeap is a simple unordered set of table pages. Its own layout
// (free-space header page + slotted table pages) is unchanged from the
// heap-file half of the engine; what's new here is that every mutation
// now takes a tuple-level lock and appends a WAL record. The record is
// appended after the page bytes change: Insert places the tuple, then
// locks its rid and logs it; Delete locks the rid, removes the tuple, then
// logs it.
type TableHeap struct {
	bufferPoolManager *disk.BufferPoolManager
	lockManager       *concurrency.LockManager
	logManager        *logging.LogManager
	headerPageId      common.PageId
}

// NewTableHeap creates a fresh heap (isNew) or reopens one whose header
// page id was previously returned by HeaderPageId(). lockManager and
// logManager may be nil to run without locking or logging, e.g. in
// single-threaded recovery replay.
func NewTableHeap(bufferPoolManager *disk.BufferPoolManager, lockManager *concurrency.LockManager, logManager *logging.LogManager, isNew bool, headerPageId common.PageId) *TableHeap {
	th := &TableHeap{
		bufferPoolManager: bufferPoolManager,
		lockManager:       lockManager,
		logManager:        logManager,
		headerPageId:      headerPageId,
	}
	if isNew {
		page, err := bufferPoolManager.NewPage()
		if err != nil {
			log.WithError(err).Fatalf("Cannot create table heap header page.")
		}
		header := createHeapFileHeader(page.Data())
		header.init()
		th.headerPageId = page.PageId()
		th.bufferPoolManager.UnpinPage(page.PageId(), true)
	}
	return th
}

func (th *TableHeap) HeaderPageId() common.PageId { return th.headerPageId }

func (th *TableHeap) getHeaderPage(exclusive bool) *disk.Page {
	page, err := th.bufferPoolManager.FetchPage(th.headerPageId)
	if err != nil {
		log.WithError(err).Fatalf("Cannot fetch heap header page.")
	}
	if exclusive {
		page.Lock()
	} else {
		page.RLock()
	}
	return page
}

func (th *TableHeap) releaseHeaderPage(page *disk.Page, exclusive bool) {
	if exclusive {
		page.Unlock()
	} else {
		page.RUnlock()
	}
	th.bufferPoolManager.UnpinPage(th.headerPageId, exclusive)
}

// lockForWrite acquires an exclusive tuple lock when both a lock manager
// and a transaction are supplied, returning false if the transaction was
// aborted (wait-die victim, state violation).
func (th *TableHeap) lockForWrite(txn *concurrency.Transaction, rid common.RID) bool {
	if th.lockManager == nil || txn == nil {
		return true
	}
	return th.lockManager.LockExclusive(txn, rid)
}

func (th *TableHeap) lockForRead(txn *concurrency.Transaction, rid common.RID) bool {
	if th.lockManager == nil || txn == nil {
		return true
	}
	return th.lockManager.LockShared(txn, rid)
}

func (th *TableHeap) appendLog(txn *concurrency.Transaction, record *logging.LogRecord) {
	if th.logManager == nil || txn == nil {
		return
	}
	record.TxnId = txn.Id()
	record.PrevLsn = txn.PrevLsn()
	lsn := th.logManager.AppendLogRecord(record)
	txn.SetPrevLsn(lsn)
}

// Insert appends record to the first page with enough free space,
// allocating a new page when none has room. A fresh page allocation is
// itself logged as a NEWPAGE record so recovery can rebuild the chain of
// heap pages.
func (th *TableHeap) Insert(record []byte, txn *concurrency.Transaction) common.RID {
	internalLoop := func() (common.RID, bool) {
		headerPage := th.getHeaderPage(false)
		header := createHeapFileHeader(headerPage.Data())
		pageInfoList := header.getPageInfoList()

		for _, info := range pageInfoList {
			if int(info.leftSpace) >= len(record) {
				th.releaseHeaderPage(headerPage, false)
				rid, ok := th.insertIntoPage(record, info.pageId)
				if !ok {
					log.Warnf("Insert a record of length %d into page %d failed.", len(record), info.pageId)
					return common.RID{}, false
				}
				if !th.lockForWrite(txn, rid) {
					return common.RID{}, false
				}
				th.appendLog(txn, logging.NewInsertLogRecord(0, 0, rid, record))
				return rid, ok
			}
		}
		th.releaseHeaderPage(headerPage, false)

		// insert into new page
		prevPageId := common.InvalidPageId
		if len(pageInfoList) > 0 {
			prevPageId = pageInfoList[len(pageInfoList)-1].pageId
		}
		newPage, err := th.bufferPoolManager.NewPage()
		if err != nil {
			log.WithError(err).Fatalf("Cannot allocate new page.")
		}
		newPage.Lock()

		newTablePage := createTablePage(newPage.Data())
		newTablePage.init(newPage.PageId(), int32(len(newPage.Data())))
		rid, _ := newTablePage.Insert(record) // must be successful

		th.appendLog(txn, logging.NewNewPageLogRecord(0, 0, prevPageId, newPage.PageId()))

		headerPage = th.getHeaderPage(true)
		header = createHeapFileHeader(headerPage.Data())
		header.pushPageInfo(pageInfo{
			pageId:    newPage.PageId(),
			leftSpace: newTablePage.getFreeSpaceForInsert(),
		})
		th.releaseHeaderPage(headerPage, true)

		newPage.Unlock()
		th.bufferPoolManager.UnpinPage(newPage.PageId(), true)

		if !th.lockForWrite(txn, rid) {
			return common.RID{}, false
		}
		th.appendLog(txn, logging.NewInsertLogRecord(0, 0, rid, record))
		return rid, true
	}
	for {
		rid, ok := internalLoop()
		if ok {
			return rid
		}
		if txn != nil && txn.State() == concurrency.StateAborted {
			return common.RID{}
		}
	}
}

func (th *TableHeap) insertIntoPage(record []byte, pageId common.PageId) (common.RID, bool) {
	page, err := th.bufferPoolManager.FetchPage(pageId)
	if err != nil {
		log.WithError(err).Fatalf("Cannot fetch page %d.", pageId)
	}
	page.Lock()
	tablePage := createTablePage(page.Data())
	rid, ok := tablePage.Insert(record)
	if !ok {
		page.Unlock()
		th.bufferPoolManager.UnpinPage(pageId, false)
		return common.RID{}, false
	}

	headerPage := th.getHeaderPage(true)
	header := createHeapFileHeader(headerPage.Data())
	header.setPageInfo(pageId, pageInfo{
		pageId:    pageId,
		leftSpace: tablePage.getFreeSpaceForInsert(),
	})
	th.releaseHeaderPage(headerPage, true)

	page.Unlock()
	th.bufferPoolManager.UnpinPage(pageId, true)
	return rid, true
}

// Delete physically removes a tuple under an exclusive lock, then appends
// a MARKDELETE log record holding the old tuple. There is no separate
// apply step: recovery treats MARKDELETE as the physical delete.
func (th *TableHeap) Delete(rid common.RID, txn *concurrency.Transaction) bool {
	if !th.lockForWrite(txn, rid) {
		return false
	}

	headerPage := th.getHeaderPage(false)
	header := createHeapFileHeader(headerPage.Data())
	_, ok := header.getPageInfo(rid.PageId)
	th.releaseHeaderPage(headerPage, false)
	if !ok {
		return false
	}

	page, err := th.bufferPoolManager.FetchPage(rid.PageId)
	if err != nil {
		log.WithError(err).Fatalf("Unexpected page not found.")
	}
	page.Lock()

	tablePage := createTablePage(page.Data())
	oldTuple, _ := tablePage.Get(rid)
	deleted := tablePage.Delete(rid)
	freeSpace := tablePage.getFreeSpaceForInsert()
	if !deleted {
		th.bufferPoolManager.UnpinPage(rid.PageId, false)
		page.Unlock()
		return false
	}

	headerPage = th.getHeaderPage(true)
	header = createHeapFileHeader(headerPage.Data())
	header.setPageInfo(rid.PageId, pageInfo{
		pageId:    rid.PageId,
		leftSpace: freeSpace,
	})
	th.releaseHeaderPage(headerPage, true)

	page.Unlock()
	th.bufferPoolManager.UnpinPage(rid.PageId, true)

	th.appendLog(txn, logging.NewDeleteLogRecord(logging.MarkDelete, 0, 0, rid, oldTuple))
	return true
}

// EnsurePage makes pageId a known page of this heap, initializing its
// table-page header and registering it in the free-space list if this is
// the first time it's been seen. Used by the recovery driver replaying a
// NEWPAGE record whose effects may not have reached disk before a crash.
func (th *TableHeap) EnsurePage(pageId common.PageId) {
	headerPage := th.getHeaderPage(false)
	header := createHeapFileHeader(headerPage.Data())
	_, exists := header.getPageInfo(pageId)
	th.releaseHeaderPage(headerPage, false)
	if exists {
		return
	}

	page, err := th.bufferPoolManager.FetchPage(pageId)
	if err != nil {
		log.WithError(err).Fatalf("Recovery cannot fetch page %d.", pageId)
	}
	page.Lock()
	tablePage := createTablePage(page.Data())
	if tablePage.pageSize == 0 {
		tablePage.init(pageId, int32(len(page.Data())))
	}
	freeSpace := tablePage.getFreeSpaceForInsert()
	page.Unlock()
	th.bufferPoolManager.UnpinPage(pageId, true)

	headerPage = th.getHeaderPage(true)
	header = createHeapFileHeader(headerPage.Data())
	header.pushPageInfo(pageInfo{pageId: pageId, leftSpace: freeSpace})
	th.releaseHeaderPage(headerPage, true)
}

// ReinsertAt restores tuple at exactly rid, reusing the slot a matching
// Delete previously freed there. It takes no lock and writes no log
// record: only the recovery driver calls this, replaying the log itself.
// A no-op if the tuple is already present, so redoing an already-durable
// insert is harmless.
func (th *TableHeap) ReinsertAt(rid common.RID, tuple []byte) {
	if tuple == nil {
		return
	}
	th.EnsurePage(rid.PageId)

	page, err := th.bufferPoolManager.FetchPage(rid.PageId)
	if err != nil {
		log.WithError(err).Fatalf("Recovery cannot fetch page %d.", rid.PageId)
	}
	page.Lock()
	tablePage := createTablePage(page.Data())
	if _, ok := tablePage.Get(rid); ok {
		page.Unlock()
		th.bufferPoolManager.UnpinPage(rid.PageId, false)
		return
	}
	gotRid, ok := tablePage.Insert(tuple)
	freeSpace := tablePage.getFreeSpaceForInsert()
	page.Unlock()
	th.bufferPoolManager.UnpinPage(rid.PageId, ok)
	if !ok || gotRid.SlotNum != rid.SlotNum {
		log.Warnf("Recovery could not restore tuple at its original rid %s.", rid.String())
		return
	}

	headerPage := th.getHeaderPage(true)
	header := createHeapFileHeader(headerPage.Data())
	header.setPageInfo(rid.PageId, pageInfo{pageId: rid.PageId, leftSpace: freeSpace})
	th.releaseHeaderPage(headerPage, true)
}

// DeleteAt physically removes the tuple at rid with no lock and no log
// record, for the recovery driver to redo a delete or undo an insert.
func (th *TableHeap) DeleteAt(rid common.RID) {
	th.EnsurePage(rid.PageId)

	page, err := th.bufferPoolManager.FetchPage(rid.PageId)
	if err != nil {
		log.WithError(err).Fatalf("Recovery cannot fetch page %d.", rid.PageId)
	}
	page.Lock()
	tablePage := createTablePage(page.Data())
	tablePage.Delete(rid)
	freeSpace := tablePage.getFreeSpaceForInsert()
	page.Unlock()
	th.bufferPoolManager.UnpinPage(rid.PageId, true)

	headerPage := th.getHeaderPage(true)
	header := createHeapFileHeader(headerPage.Data())
	header.setPageInfo(rid.PageId, pageInfo{pageId: rid.PageId, leftSpace: freeSpace})
	th.releaseHeaderPage(headerPage, true)
}

func (th *TableHeap) Get(rid common.RID, txn *concurrency.Transaction) ([]byte, bool) {
	if !th.lockForRead(txn, rid) {
		return nil, false
	}

	headerPage := th.getHeaderPage(false)
	header := createHeapFileHeader(headerPage.Data())
	_, ok := header.getPageInfo(rid.PageId)
	th.releaseHeaderPage(headerPage, false)
	if !ok {
		return nil, false
	}

	page, err := th.bufferPoolManager.FetchPage(rid.PageId)
	if err != nil {
		log.WithError(err).Fatalf("Unexpected page not found.")
	}
	page.Lock()
	tablePage := createTablePage(page.Data())
	data, found := tablePage.Get(rid)
	page.Unlock()
	th.bufferPoolManager.UnpinPage(rid.PageId, false)
	return data, found
}
