// Command dsscan finds (and optionally removes) .DS_Store files across
// a directory tree, remembering what it has already searched so later
// runs only revisit what changed.
package main

import (
	"os"

	"github.com/hazyhaar/dsscan/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
