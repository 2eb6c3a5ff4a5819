package main

import (
	"os"

	"github.com/optiq-ai/optiq/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
