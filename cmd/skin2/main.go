package main

import (
	"os"

	"github.com/ChlorophyllA/skin2/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
