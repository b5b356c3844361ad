// Package main provides the instruct CLI.
package main

import (
	"os"

	"github.com/born-ml/instruct/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
