// Command calcsync builds emissions calculations from CUE templates and
// keeps them in sync with a drill-down catalog service.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/roach88/calcsync/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
