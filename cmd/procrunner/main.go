package main

import (
	"fmt"
	"os"

	"github.com/YoshitsuguKoike/procrunner/internal/interface/cli"
	"github.com/YoshitsuguKoike/procrunner/internal/interface/cli/common"
)

func main() {
	if err := cli.NewRoot().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(common.ExitCode(err))
	}
}
