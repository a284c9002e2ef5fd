// Command catalogctl administers the catalog's snapshot files directly.
// Do not run mutating commands while the server is running against the
// same files; the server would overwrite the change on its next save.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
