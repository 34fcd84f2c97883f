// Package recovery replays the write-ahead log after a restart: redo every
// record in log order, then undo whatever transaction never reached COMMIT
// or ABORT by walking its prev-lsn chain backward. It drives the table heap
// through its ordinary operations plus the handful of exact-rid primitives
// (ReinsertAt/DeleteAt/EnsurePage) recovery needs and normal clients don't.
package recovery

import (
	log "github.com/sirupsen/logrus"

	"simple-db-golang/src/common"
	"simple-db-golang/src/disk"
	"simple-db-golang/src/logging"
	"simple-db-golang/src/table"
)

// Manager scans a single table heap's portion of the log. A real multi-table
// engine would need the header-page record table this repo already carries
// (src/index/header_page.go's technique) to dispatch records to the right
// heap; here there's one heap, so every record redone/undone targets it.
type Manager struct {
	diskManager *disk.DiskManager
	tableHeap   *table.TableHeap

	activeTxn map[common.TxnId]common.Lsn
	lsnOffset map[common.Lsn]int64
}

func NewManager(diskManager *disk.DiskManager, tableHeap *table.TableHeap) *Manager {
	return &Manager{
		diskManager: diskManager,
		tableHeap:   tableHeap,
		activeTxn:   make(map[common.TxnId]common.Lsn),
		lsnOffset:   make(map[common.Lsn]int64),
	}
}

// ActiveTxnCount reports how many transactions Redo found still open at
// end-of-log, i.e. how many Undo will roll back.
func (m *Manager) ActiveTxnCount() int { return len(m.activeTxn) }

func (m *Manager) readRecordAt(offset int64) (*logging.LogRecord, bool) {
	header := make([]byte, logging.HeaderSize)
	if !m.diskManager.ReadLog(header, logging.HeaderSize, offset) {
		return nil, false
	}
	rec := logging.DeserializeHeader(header)
	if rec == nil {
		return nil, false
	}
	body := make([]byte, rec.Size)
	if !m.diskManager.ReadLog(body, int(rec.Size), offset) {
		return nil, false
	}
	rec.DeserializeBody(body)
	return rec, true
}

// Redo scans the log from its very start and reapplies every record,
// "repeating history" rather than tracking per-page LSNs: the table heap's
// ReinsertAt/DeleteAt are idempotent against a tuple that's already
// present or already gone, so replaying an operation whose effect survived
// the crash is harmless.
func (m *Manager) Redo() {
	var offset int64
	for {
		rec, ok := m.readRecordAt(offset)
		if !ok {
			break
		}
		m.lsnOffset[rec.Lsn] = offset

		if rec.Type == logging.Commit || rec.Type == logging.Abort {
			delete(m.activeTxn, rec.TxnId)
		} else {
			m.activeTxn[rec.TxnId] = rec.Lsn
		}

		switch rec.Type {
		case logging.Insert:
			m.tableHeap.ReinsertAt(rec.InsertRid, rec.InsertTuple)
		case logging.MarkDelete, logging.ApplyDelete:
			m.tableHeap.DeleteAt(rec.DeleteRid)
		case logging.RollbackDelete:
			m.tableHeap.ReinsertAt(rec.DeleteRid, rec.DeleteTuple)
		case logging.Update:
			m.tableHeap.ReinsertAt(rec.UpdateRid, rec.NewTuple)
		case logging.NewPage:
			m.tableHeap.EnsurePage(rec.PageId)
		}

		offset += int64(rec.Size)
	}
	log.Infof("Redo complete: %d transaction(s) left active at end of log.", len(m.activeTxn))
}

// Undo rolls back every transaction Redo left active, oldest effect last:
// each walks backward from its last-seen lsn via PrevLsn, reverting one
// record at a time until it reaches InvalidLsn.
func (m *Manager) Undo() {
	for txnId, lastLsn := range m.activeTxn {
		cur := lastLsn
		for cur != common.InvalidLsn {
			offset, ok := m.lsnOffset[cur]
			if !ok {
				log.Warnf("Undo for txn %d: no offset recorded for lsn %d.", txnId, cur)
				break
			}
			rec, ok := m.readRecordAt(offset)
			if !ok {
				break
			}

			switch rec.Type {
			case logging.Insert:
				m.tableHeap.DeleteAt(rec.InsertRid)
			case logging.MarkDelete, logging.ApplyDelete:
				m.tableHeap.ReinsertAt(rec.DeleteRid, rec.DeleteTuple)
			case logging.RollbackDelete:
				m.tableHeap.DeleteAt(rec.DeleteRid)
			case logging.Update:
				m.tableHeap.ReinsertAt(rec.UpdateRid, rec.OldTuple)
			}

			cur = rec.PrevLsn
		}
		delete(m.activeTxn, txnId)
	}
}
