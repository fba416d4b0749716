package main

import (
	"os"

	"github.com/EznRB/utmify-hooks/cmd/hookctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
