// Package main is the entry point of the speadcap SPEAD packet decoder.
package main

import (
	"fmt"
	"os"

	"firestige.xyz/speadcap/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
