package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		if errors.Is(err, context.Canceled) {
			// Interrupted run; the pipeline already logged where it stopped.
			os.Exit(130)
		}
		fmt.Fprintln(os.Stderr, "paperlink:", err)
		os.Exit(1)
	}
}
