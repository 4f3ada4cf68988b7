package main

import (
	"os"

	"github.com/spf13/afero"
)

var version = "dev"

func main() {
	if err := newRootCmd(afero.NewOsFs()).Execute(); err != nil {
		os.Exit(1)
	}
}
