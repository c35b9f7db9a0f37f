package main

import (
	"os"

	"statcube/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
