// Command pyve manages project-local Python environments.
package main

import (
	"os"

	"github.com/mesh-intelligence/pyve/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
