package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"simple-db-golang/src/engine"
)

var benchKeyCount int

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Insert N keys then look each one back up, reporting elapsed time",
	RunE: func(cmd *cobra.Command, _ []string) error {
		db, err := engine.Open(dataFile, 0)
		if err != nil {
			return fmt.Errorf("cannot open %q: %w", dataFile, err)
		}
		defer db.Close()

		start := time.Now()
		for i := 0; i < benchKeyCount; i++ {
			key := fmt.Sprintf("bench-%d", i)
			if err := db.Put(key, []byte(key)); err != nil {
				return fmt.Errorf("insert %q: %w", key, err)
			}
		}
		insertElapsed := time.Since(start)

		start = time.Now()
		misses := 0
		for i := 0; i < benchKeyCount; i++ {
			key := fmt.Sprintf("bench-%d", i)
			if _, ok := db.Get(key); !ok {
				misses++
			}
		}
		lookupElapsed := time.Since(start)

		fmt.Printf("inserted %d keys in %s (%s/op)\n", benchKeyCount, insertElapsed, insertElapsed/time.Duration(benchKeyCount))
		fmt.Printf("looked up %d keys in %s (%s/op), %d misses\n", benchKeyCount, lookupElapsed, lookupElapsed/time.Duration(benchKeyCount), misses)
		return nil
	},
}

func init() {
	benchCmd.Flags().IntVarP(&benchKeyCount, "count", "n", 1000, "number of keys to insert and look up")
}
