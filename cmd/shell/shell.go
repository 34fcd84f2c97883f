package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"simple-db-golang/src/engine"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Open an interactive put/get/delete/verify session against the data file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		db, err := engine.Open(dataFile, 0)
		if err != nil {
			return fmt.Errorf("cannot open %q: %w", dataFile, err)
		}
		defer func() {
			if err := db.Close(); err != nil {
				log.WithError(err).Warn("error closing database")
			}
		}()

		runShell(db, os.Stdin, os.Stdout)
		return nil
	},
}

func runShell(db *engine.Database, in *os.File, out *os.File) {
	scanner := bufio.NewScanner(in)
	fmt.Fprintln(out, "simpledb shell. Commands: put <key> <value> | get <key> | delete <key> | verify | tree | exit")
	for {
		fmt.Fprint(out, "simpledb> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, " ", 3)
		switch fields[0] {
		case "put":
			if len(fields) != 3 {
				fmt.Fprintln(out, "usage: put <key> <value>")
				continue
			}
			if err := db.Put(fields[1], []byte(fields[2])); err != nil {
				fmt.Fprintln(out, "error:", err)
				continue
			}
			fmt.Fprintln(out, "ok")
		case "get":
			if len(fields) != 2 {
				fmt.Fprintln(out, "usage: get <key>")
				continue
			}
			value, ok := db.Get(fields[1])
			if !ok {
				fmt.Fprintln(out, "not found")
				continue
			}
			fmt.Fprintln(out, string(value))
		case "delete":
			if len(fields) != 2 {
				fmt.Fprintln(out, "usage: delete <key>")
				continue
			}
			if !db.Delete(fields[1]) {
				fmt.Fprintln(out, "not found")
				continue
			}
			fmt.Fprintln(out, "ok")
		case "verify":
			fmt.Fprintln(out, db.Index.Check())
		case "tree":
			fmt.Fprintln(out, db.Index.ToString())
		case "exit", "quit":
			return
		default:
			fmt.Fprintln(out, "unknown command:", fields[0])
		}
	}
}
