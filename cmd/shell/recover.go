package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"simple-db-golang/src/common"
	"simple-db-golang/src/disk"
	"simple-db-golang/src/recovery"
	"simple-db-golang/src/table"
)

var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Replay the write-ahead log against the data file and report what it found",
	RunE: func(cmd *cobra.Command, _ []string) error {
		dm := disk.NewDiskManager(dataFile)
		defer dm.Close()
		bpm := disk.NewBufferPoolManager(128, dm, disk.NewLRUReplacer())

		th := table.NewTableHeap(bpm, nil, nil, false, common.PageId(0))
		mgr := recovery.NewManager(dm, th)
		mgr.Redo()
		leftover := mgr.ActiveTxnCount()
		mgr.Undo()

		if err := bpm.FlushAllPages(); err != nil {
			return fmt.Errorf("flushing recovered pages: %w", err)
		}
		fmt.Printf("redo complete, undid %d transaction(s) that never committed or aborted\n", leftover)
		return nil
	},
}
