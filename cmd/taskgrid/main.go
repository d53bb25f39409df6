package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mkostova/taskgrid/internal/cli"
)

var rootCmd = &cobra.Command{Use: "taskgrid"}

func main() {
	rootCmd.PersistentFlags().String("db", "", "Configuration store connection string (or TASKGRID_DB)")
	cli.SetupCLI(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
