package main

import (
	"os"

	"github.com/conneroisu/arbor/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
