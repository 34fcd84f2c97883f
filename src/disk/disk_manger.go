package disk

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/ncw/directio"
	log "github.com/sirupsen/logrus"

	"simple-db-golang/src/common"
)

const (
	pageSize = common.PageSize
)

// DiskManager owns the data file (page-aligned random I/O via directio)
// and the log file (sequential append). The log file name is derived from
// the data file's stem, per spec.md section 4.1. AllocatePage is a bare
// monotonic counter and DeallocatePage is a no-op: this engine never
// reclaims page space.
type DiskManager struct {
	fileName string
	fi       *os.File

	nextPageId int64 // atomic, common.PageId truncated

	logFileName string
	logFi       *os.File
	logMu       sync.Mutex
	numFlushes  int
}

func NewDiskManager(fileName string) *DiskManager {
	fi, err := directio.OpenFile(fileName, os.O_CREATE|os.O_RDWR|os.O_SYNC, 0644)
	if err != nil {
		log.WithError(err).Fatalf("Cannot open file.")
	}
	logFileName := deriveLogFileName(fileName)
	logFi, err := os.OpenFile(logFileName, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		log.WithError(err).Fatalf("Cannot open log file.")
	}
	dm := &DiskManager{
		fileName:    fileName,
		fi:          fi,
		logFileName: logFileName,
		logFi:       logFi,
	}
	size, err := dm.getFileSize()
	if err != nil {
		log.WithError(err).Fatalf("Cannot get file size.")
	}
	// Resume allocation after the highest existing page rather than
	// restarting at zero, so reopening a file never hands out a page id
	// that collides with data already on disk.
	dm.nextPageId = size / pageSize
	return dm
}

func deriveLogFileName(fileName string) string {
	ext := filepath.Ext(fileName)
	return strings.TrimSuffix(fileName, ext) + ".log"
}

func (dm *DiskManager) Close() error {
	logErr := dm.logFi.Close()
	if err := dm.fi.Close(); err != nil {
		return err
	}
	return logErr
}

// AllocatePage returns the next monotonically increasing page id.
func (dm *DiskManager) AllocatePage() common.PageId {
	id := atomic.AddInt64(&dm.nextPageId, 1) - 1
	return common.PageId(id)
}

// DeallocatePage is a no-op: space is not reclaimed, per spec.md section 4.1.
func (dm *DiskManager) DeallocatePage(pageId common.PageId) {}

// ReadPage seek-reads PAGE_SIZE bytes into out. Reading past end-of-file is
// not an error: the remainder of out is zero-filled.
func (dm *DiskManager) ReadPage(pageId common.PageId, out []byte) error {
	if pageId < 0 {
		return fmt.Errorf("page id is negative")
	}
	offset := int64(pageId) * int64(pageSize)

	size, err := dm.getFileSize()
	if err != nil {
		return err
	}
	if offset >= size {
		for i := range out {
			out[i] = 0
		}
		return nil
	}
	if _, err := dm.fi.Seek(offset, io.SeekStart); err != nil {
		return err
	}
	n, err := dm.fi.Read(out)
	if err != nil && err != io.EOF {
		log.WithError(err).Warnf("I/O error while reading page %d.", pageId)
		return err
	}
	if n < len(out) {
		for i := n; i < len(out); i++ {
			out[i] = 0
		}
	}
	return nil
}

// WritePage writes PAGE_SIZE bytes at page_id*PAGE_SIZE and flushes. I/O
// errors are logged and swallowed: the caller of this course engine has no
// meaningful retry path, per spec.md section 4.1.
func (dm *DiskManager) WritePage(pageId common.PageId, data []byte) error {
	if pageId < 0 {
		return fmt.Errorf("page id is negative")
	}
	offset := int64(pageId) * int64(pageSize)
	if _, err := dm.fi.Seek(offset, io.SeekStart); err != nil {
		log.WithError(err).Errorf("I/O error while seeking to write page %d.", pageId)
		return nil
	}
	if _, err := dm.fi.Write(data); err != nil {
		log.WithError(err).Errorf("I/O error while writing page %d.", pageId)
		return nil
	}
	return nil
}

// WriteLog appends data to the log file and increments the flush counter.
// A zero-length write is a no-op, per spec.md section 4.1. The log
// manager's flusher already guarantees only one flush is ever in flight;
// the mutex here is a cheap second guard matching that invariant.
func (dm *DiskManager) WriteLog(data []byte, size int) error {
	if size == 0 {
		return nil
	}
	dm.logMu.Lock()
	defer dm.logMu.Unlock()

	dm.numFlushes++
	if _, err := dm.logFi.Write(data[:size]); err != nil {
		log.WithError(err).Errorf("I/O error while writing log.")
		return err
	}
	if err := dm.logFi.Sync(); err != nil {
		log.WithError(err).Errorf("I/O error while syncing log.")
		return err
	}
	return nil
}

// ReadLog fills buf[:size] starting at offset, zero-padding on a short
// read. Returns false when offset is at or past EOF.
func (dm *DiskManager) ReadLog(buf []byte, size int, offset int64) bool {
	dm.logMu.Lock()
	defer dm.logMu.Unlock()

	fileSize, err := dm.getLogFileSize()
	if err != nil {
		log.WithError(err).Errorf("Cannot stat log file.")
		return false
	}
	if offset >= fileSize {
		return false
	}
	n, err := dm.logFi.ReadAt(buf[:size], offset)
	if err != nil && err != io.EOF {
		log.WithError(err).Errorf("I/O error while reading log.")
		return false
	}
	if n < size {
		for i := n; i < size; i++ {
			buf[i] = 0
		}
	}
	return true
}

func (dm *DiskManager) NumFlushes() int {
	dm.logMu.Lock()
	defer dm.logMu.Unlock()
	return dm.numFlushes
}

func (dm *DiskManager) getFileSize() (int64, error) {
	stat, err := dm.fi.Stat()
	if err != nil {
		return 0, err
	}
	return stat.Size(), nil
}

func (dm *DiskManager) getLogFileSize() (int64, error) {
	stat, err := dm.logFi.Stat()
	if err != nil {
		return 0, err
	}
	return stat.Size(), nil
}
