// Command campuscache is the local data layer for the campus resource catalog:
// an offline-first cache with staleness-driven pull sync.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
