package main

import (
	"os"

	"github.com/grovetools/provenance/cli"
	"github.com/grovetools/provenance/cmd"
)

func main() {
	os.Exit(cli.Execute(cmd.NewRootCmd()))
}
