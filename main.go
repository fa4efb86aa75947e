package main

import (
	"os"

	"github.com/hragd/hragd/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
