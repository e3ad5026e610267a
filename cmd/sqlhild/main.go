// Package main is the entry point for the sqlhild binary.
package main

import (
	"os"

	"sqlhild/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
