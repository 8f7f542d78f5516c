package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/any-hub/channel-mirror/internal/version"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "显示版本信息",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			printVersion()
			return nil
		},
	}
}

// printVersion 输出注入的版本 + 提交信息。
func printVersion() {
	fmt.Fprintln(stdOut, version.Full())
}
