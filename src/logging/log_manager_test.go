package logging

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"simple-db-golang/src/common"
	"simple-db-golang/src/disk"
)

func newTestLogManager(t *testing.T, name string) (*LogManager, *disk.DiskManager, func()) {
	file := "tmp-log-" + name
	dm := disk.NewDiskManager(file)
	lm := NewLogManager(dm)
	cleanup := func() {
		dm.Close()
		os.Remove(file)
		os.Remove(file + ".log")
	}
	return lm, dm, cleanup
}

func TestLogManager_AppendAssignsIncreasingLsns(t *testing.T) {
	lm, _, cleanup := newTestLogManager(t, "lsns")
	defer cleanup()

	r1 := NewBeginLogRecord(common.TxnId(1), common.InvalidLsn)
	r2 := NewCommitLogRecord(common.TxnId(1), common.Lsn(0))

	lsn1 := lm.AppendLogRecord(r1)
	lsn2 := lm.AppendLogRecord(r2)

	require.Equal(t, common.Lsn(0), lsn1)
	require.Equal(t, common.Lsn(1), lsn2)
	require.Equal(t, lsn1, r1.Lsn)
	require.Equal(t, lsn2, r2.Lsn)
}

func TestLogManager_ForceFlushPersistsToDisk(t *testing.T) {
	lm, dm, cleanup := newTestLogManager(t, "flush")
	defer cleanup()

	lm.RunFlushThread()
	defer lm.StopFlushThread()

	require.Equal(t, common.InvalidLsn, lm.PersistentLsn())

	r := NewBeginLogRecord(common.TxnId(7), common.InvalidLsn)
	lsn := lm.AppendLogRecord(r)
	lm.Flush(true)

	require.Equal(t, lsn, lm.PersistentLsn())

	buf := make([]byte, HeaderSize)
	require.True(t, dm.ReadLog(buf, HeaderSize, 0))
	got := DeserializeHeader(buf)
	require.NotNil(t, got)
	require.Equal(t, Begin, got.Type)
	require.Equal(t, common.TxnId(7), got.TxnId)
}

func TestLogManager_GroupCommitAcrossMultipleAppends(t *testing.T) {
	lm, dm, cleanup := newTestLogManager(t, "group")
	defer cleanup()

	lm.RunFlushThread()
	defer lm.StopFlushThread()

	var last common.Lsn
	for i := 0; i < 5; i++ {
		last = lm.AppendLogRecord(NewCommitLogRecord(common.TxnId(int32(i)), common.InvalidLsn))
	}
	lm.Flush(true)
	require.Equal(t, last, lm.PersistentLsn())
	require.GreaterOrEqual(t, dm.NumFlushes(), 1)
}

func TestLogManager_TimedFlushReachesDiskWithoutForce(t *testing.T) {
	saved := common.LogTimeout
	common.LogTimeout = 30 * time.Millisecond
	defer func() { common.LogTimeout = saved }()

	lm, _, cleanup := newTestLogManager(t, "timeout")
	defer cleanup()

	lm.RunFlushThread()
	defer lm.StopFlushThread()

	lsn := lm.AppendLogRecord(NewBeginLogRecord(common.TxnId(9), common.InvalidLsn))

	require.Eventually(t, func() bool {
		return lm.PersistentLsn() == lsn
	}, time.Second, 5*time.Millisecond)
}
