package logging

import (
	"encoding/binary"

	"simple-db-golang/src/common"
)

type LogRecordType int32

const (
	Invalid LogRecordType = iota
	Insert
	MarkDelete
	ApplyDelete
	RollbackDelete
	Update
	NewPage
	Begin
	Commit
	Abort
)

// HeaderSize is the fixed prefix every record carries: size, lsn, txn id,
// prev lsn and type, each a little-endian int32.
const HeaderSize = 20

// LogRecord is one WAL entry. Only the fields relevant to Type are
// populated; the rest are zero value.
type LogRecord struct {
	Size    int32
	Lsn     common.Lsn
	TxnId   common.TxnId
	PrevLsn common.Lsn
	Type    LogRecordType

	InsertRid   common.RID
	InsertTuple []byte

	DeleteRid   common.RID
	DeleteTuple []byte

	UpdateRid common.RID
	OldTuple  []byte
	NewTuple  []byte

	PrevPageId common.PageId
	PageId     common.PageId
}

func NewBeginLogRecord(txnId common.TxnId, prevLsn common.Lsn) *LogRecord {
	r := &LogRecord{TxnId: txnId, PrevLsn: prevLsn, Type: Begin}
	r.Size = HeaderSize
	return r
}

func NewCommitLogRecord(txnId common.TxnId, prevLsn common.Lsn) *LogRecord {
	r := &LogRecord{TxnId: txnId, PrevLsn: prevLsn, Type: Commit}
	r.Size = HeaderSize
	return r
}

func NewAbortLogRecord(txnId common.TxnId, prevLsn common.Lsn) *LogRecord {
	r := &LogRecord{TxnId: txnId, PrevLsn: prevLsn, Type: Abort}
	r.Size = HeaderSize
	return r
}

func NewInsertLogRecord(txnId common.TxnId, prevLsn common.Lsn, rid common.RID, tuple []byte) *LogRecord {
	r := &LogRecord{TxnId: txnId, PrevLsn: prevLsn, Type: Insert, InsertRid: rid, InsertTuple: tuple}
	r.Size = HeaderSize + ridSize + tupleWireSize(tuple)
	return r
}

func NewDeleteLogRecord(logType LogRecordType, txnId common.TxnId, prevLsn common.Lsn, rid common.RID, tuple []byte) *LogRecord {
	r := &LogRecord{TxnId: txnId, PrevLsn: prevLsn, Type: logType, DeleteRid: rid, DeleteTuple: tuple}
	r.Size = HeaderSize + ridSize + tupleWireSize(tuple)
	return r
}

func NewUpdateLogRecord(txnId common.TxnId, prevLsn common.Lsn, rid common.RID, oldTuple, newTuple []byte) *LogRecord {
	r := &LogRecord{TxnId: txnId, PrevLsn: prevLsn, Type: Update, UpdateRid: rid, OldTuple: oldTuple, NewTuple: newTuple}
	r.Size = HeaderSize + ridSize + tupleWireSize(oldTuple) + tupleWireSize(newTuple)
	return r
}

func NewNewPageLogRecord(txnId common.TxnId, prevLsn common.Lsn, prevPageId, pageId common.PageId) *LogRecord {
	r := &LogRecord{TxnId: txnId, PrevLsn: prevLsn, Type: NewPage, PrevPageId: prevPageId, PageId: pageId}
	r.Size = HeaderSize + 4 + 4
	return r
}

const ridSize = 8 // PageId int32 + SlotNum int32

func tupleWireSize(tuple []byte) int32 {
	return 4 + int32(len(tuple))
}

func putRid(buf []byte, rid common.RID) {
	binary.LittleEndian.PutUint32(buf[0:4], uint32(rid.PageId))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(rid.SlotNum))
}

func getRid(buf []byte) common.RID {
	return common.RID{
		PageId:  common.PageId(binary.LittleEndian.Uint32(buf[0:4])),
		SlotNum: int(int32(binary.LittleEndian.Uint32(buf[4:8]))),
	}
}

func putTuple(buf []byte, tuple []byte) int {
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(tuple)))
	copy(buf[4:], tuple)
	return 4 + len(tuple)
}

func getTuple(buf []byte) ([]byte, int) {
	length := int(binary.LittleEndian.Uint32(buf[0:4]))
	tuple := make([]byte, length)
	copy(tuple, buf[4:4+length])
	return tuple, 4 + length
}

// Serialize writes the record's wire form, per its Size, into buf[:Size].
func (r *LogRecord) Serialize(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], uint32(r.Size))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(r.Lsn))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(r.TxnId))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(r.PrevLsn))
	binary.LittleEndian.PutUint32(buf[16:20], uint32(r.Type))

	pos := HeaderSize
	switch r.Type {
	case Insert:
		putRid(buf[pos:], r.InsertRid)
		pos += ridSize
		putTuple(buf[pos:], r.InsertTuple)
	case MarkDelete, ApplyDelete, RollbackDelete:
		putRid(buf[pos:], r.DeleteRid)
		pos += ridSize
		putTuple(buf[pos:], r.DeleteTuple)
	case Update:
		putRid(buf[pos:], r.UpdateRid)
		pos += ridSize
		n := putTuple(buf[pos:], r.OldTuple)
		pos += n
		putTuple(buf[pos:], r.NewTuple)
	case NewPage:
		binary.LittleEndian.PutUint32(buf[pos:pos+4], uint32(r.PrevPageId))
		binary.LittleEndian.PutUint32(buf[pos+4:pos+8], uint32(r.PageId))
	}
}

// DeserializeHeader reads just the fixed header, enough to know Size and
// decide whether the rest of the record has been flushed yet.
func DeserializeHeader(buf []byte) *LogRecord {
	size := int32(binary.LittleEndian.Uint32(buf[0:4]))
	if size <= 0 {
		return nil
	}
	return &LogRecord{
		Size:    size,
		Lsn:     common.Lsn(binary.LittleEndian.Uint32(buf[4:8])),
		TxnId:   common.TxnId(binary.LittleEndian.Uint32(buf[8:12])),
		PrevLsn: common.Lsn(binary.LittleEndian.Uint32(buf[12:16])),
		Type:    LogRecordType(binary.LittleEndian.Uint32(buf[16:20])),
	}
}

// DeserializeBody fills in the type-specific payload from buf, which must
// hold at least r.Size bytes starting at the record's header.
func (r *LogRecord) DeserializeBody(buf []byte) {
	pos := HeaderSize
	switch r.Type {
	case Insert:
		r.InsertRid = getRid(buf[pos:])
		pos += ridSize
		r.InsertTuple, _ = getTuple(buf[pos:])
	case MarkDelete, ApplyDelete, RollbackDelete:
		r.DeleteRid = getRid(buf[pos:])
		pos += ridSize
		r.DeleteTuple, _ = getTuple(buf[pos:])
	case Update:
		r.UpdateRid = getRid(buf[pos:])
		pos += ridSize
		old, n := getTuple(buf[pos:])
		r.OldTuple = old
		pos += n
		r.NewTuple, _ = getTuple(buf[pos:])
	case NewPage:
		r.PrevPageId = common.PageId(binary.LittleEndian.Uint32(buf[pos : pos+4]))
		r.PageId = common.PageId(binary.LittleEndian.Uint32(buf[pos+4 : pos+8]))
	}
}
