package main

import (
	"fmt"
	"os"

	"github.com/kailas-cloud/hintd/internal/cli"
	"github.com/kailas-cloud/hintd/internal/version"
)

func main() {
	if err := cli.NewRootCommand(version.Version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
