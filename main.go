package main

import (
	"os"

	"github.com/askdocs/askdocs/cli"
)

func main() {
	if err := cli.RootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
