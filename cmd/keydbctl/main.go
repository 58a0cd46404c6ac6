// Command keydbctl inspects and repairs a keydb store: it reads the committed height, gets,
// puts and deletes keys, stamps a height, and serves the REST API.
package main

import (
	"fmt"
	"os"

	"github.com/sharedcode/keydb"
)

func main() {
	if err := keydb.ConfigureLogging(""); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
