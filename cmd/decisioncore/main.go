// Binary decisioncore is the entry point for backtests, labeling runs and
// bar imports.
package main

import (
	"fmt"
	"os"

	"github.com/dmeints/Trading-Bot-v2-sub010/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
