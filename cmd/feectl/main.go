package main

import (
	"os"

	"github.com/mmynk/feeallocator/cmd/feectl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
