// Package main is the entry point of the embedmesh CLI.
package main

import (
	"os"

	"github.com/hupe1980/embedmesh/cmd/embedmesh/app"
)

func main() {
	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
