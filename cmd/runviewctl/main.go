// Command runviewctl inspects and edits the persisted dashboard view state:
// which runs are plotted, their colors and each table's layout.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	os.Exit(submain())
}

func submain() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintf(root.ErrOrStderr(), "runviewctl: %v\n", err)
		return 1
	}
	return 0
}
