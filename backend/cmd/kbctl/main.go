// Command kbctl runs maintenance tasks against a knowledge base database.
package main

import (
	"fmt"
	"os"

	"knowledge-base/backend/pkg/logger"
)

func main() {
	defer logger.Sync()
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
