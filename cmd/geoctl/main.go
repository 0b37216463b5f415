// Package main is the entry point for the geoctl binary.
package main

import (
	"os"

	cli "geoadmin-control/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
