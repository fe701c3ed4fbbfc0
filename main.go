package main

import (
	"os"

	"github.com/mjarco/homemon/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
