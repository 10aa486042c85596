package main

import (
	"os"

	"github.com/ailawyer-pro/ailawyer/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
