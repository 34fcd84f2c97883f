package main

import (
	"github.com/spf13/cobra"
)

var dataFile string

var rootCmd = &cobra.Command{
	Use:   "simpledb",
	Short: "simpledb drives the storage engine core from the command line",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&dataFile, "file", "f", "simpledb.db", "path to the database's data file")
	rootCmd.AddCommand(shellCmd, benchCmd, recoverCmd)
}
