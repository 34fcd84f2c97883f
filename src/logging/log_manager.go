package logging

import (
	"sync"
	"sync/atomic"
	"time"

	"simple-db-golang/src/common"
	"simple-db-golang/src/disk"
)

// LogManager double-buffers WAL records: log_buffer absorbs AppendLogRecord
// calls while flush_buffer drains to disk, swapping whenever the active
// buffer fills, LogTimeout elapses, or the buffer pool forces a flush
// ahead of a dirty eviction.
type LogManager struct {
	diskManager *disk.DiskManager

	mu           sync.Mutex
	cvFlush      *sync.Cond
	cvAppend     *sync.Cond
	logBuffer    []byte
	flushBuffer  []byte
	bufferOffset int
	flushSize    int
	needFlush    bool

	nextLsn       int64 // atomic
	lastLsn       common.Lsn
	persistentLsn int64 // atomic, common.Lsn

	enabled  bool
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewLogManager(diskManager *disk.DiskManager) *LogManager {
	lm := &LogManager{
		diskManager: diskManager,
		logBuffer:   make([]byte, common.LogBufferSize),
		flushBuffer: make([]byte, common.LogBufferSize),
		lastLsn:     common.InvalidLsn,
	}
	lm.cvFlush = sync.NewCond(&lm.mu)
	lm.cvAppend = sync.NewCond(&lm.mu)
	atomic.StoreInt64(&lm.persistentLsn, int64(common.InvalidLsn))
	return lm
}

func (lm *LogManager) PersistentLsn() common.Lsn {
	return common.Lsn(atomic.LoadInt64(&lm.persistentLsn))
}

func (lm *LogManager) setPersistentLsn(lsn common.Lsn) {
	atomic.StoreInt64(&lm.persistentLsn, int64(lsn))
}

// RunFlushThread starts the background flusher. Calling it again while
// already running is a no-op, matching the original's idempotent guard.
func (lm *LogManager) RunFlushThread() {
	lm.mu.Lock()
	if lm.enabled {
		lm.mu.Unlock()
		return
	}
	lm.enabled = true
	lm.stopCh = make(chan struct{})
	lm.mu.Unlock()

	lm.wg.Add(1)
	go lm.tickLoop(lm.stopCh)
	lm.wg.Add(1)
	go lm.flushLoop()
}

// tickLoop wakes the flush loop every LogTimeout even when nobody
// requested a flush, so a quiet log still reaches disk periodically.
func (lm *LogManager) tickLoop(stopCh chan struct{}) {
	defer lm.wg.Done()
	ticker := time.NewTicker(common.LogTimeout)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			lm.mu.Lock()
			lm.cvFlush.Broadcast()
			lm.mu.Unlock()
		case <-stopCh:
			return
		}
	}
}

func (lm *LogManager) flushLoop() {
	defer lm.wg.Done()
	lm.mu.Lock()
	for lm.enabled {
		lm.cvFlush.Wait()
		if !lm.enabled {
			break
		}
		if lm.bufferOffset > 0 {
			lm.logBuffer, lm.flushBuffer = lm.flushBuffer, lm.logBuffer
			lm.flushSize, lm.bufferOffset = lm.bufferOffset, 0
			flushed := lm.flushSize
			toWrite := lm.flushBuffer
			lastLsn := lm.lastLsn
			lm.mu.Unlock()

			lm.diskManager.WriteLog(toWrite, flushed)

			lm.mu.Lock()
			lm.flushSize = 0
			lm.setPersistentLsn(lastLsn)
		}
		lm.needFlush = false
		lm.cvAppend.Broadcast()
	}
	lm.mu.Unlock()
}

// StopFlushThread stops and joins the background flusher after forcing a
// final flush.
func (lm *LogManager) StopFlushThread() {
	lm.mu.Lock()
	if !lm.enabled {
		lm.mu.Unlock()
		return
	}
	lm.mu.Unlock()

	lm.Flush(true)

	lm.mu.Lock()
	lm.enabled = false
	close(lm.stopCh)
	lm.cvFlush.Broadcast()
	lm.mu.Unlock()
	lm.wg.Wait()
}

// AppendLogRecord assigns the record's lsn and copies its serialized bytes
// into the active buffer, blocking until there's room if the buffer is
// full. Returns the assigned lsn.
func (lm *LogManager) AppendLogRecord(record *LogRecord) common.Lsn {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	for lm.bufferOffset+int(record.Size) >= len(lm.logBuffer) {
		lm.needFlush = true
		lm.cvFlush.Broadcast()
		lm.cvAppend.Wait()
	}

	lsn := common.Lsn(atomic.AddInt64(&lm.nextLsn, 1) - 1)
	record.Lsn = lsn
	record.Serialize(lm.logBuffer[lm.bufferOffset : lm.bufferOffset+int(record.Size)])
	lm.bufferOffset += int(record.Size)
	lm.lastLsn = lsn
	return lsn
}

// Flush forces a buffer swap and disk write when force is true, and
// blocks the caller until that flush completes. When force is false, the
// caller instead waits for the next flush the background thread performs
// on its own (group commit).
func (lm *LogManager) Flush(force bool) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	if force {
		lm.needFlush = true
		lm.cvFlush.Broadcast()
		for lm.enabled && lm.needFlush {
			lm.cvAppend.Wait()
		}
	} else {
		lm.cvAppend.Wait()
	}
}
