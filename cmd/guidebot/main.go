// Command guidebot runs the Telegram guide bot and its maintenance tasks.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "guidebot",
		Short:         "Telegram menu bot over a topic/subtopic knowledge base",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "", "path to the YAML config (default $CONFIG_PATH or configs/config.yaml)")

	root.AddCommand(
		newRunCmd(),
		newIndexCmd(),
		newKBCmd(),
		newVersionCmd(),
	)
	return root
}
