// kotobadb is the engine's process entry point: it hands control to
// the cli package's command tree and exits with the documented
// process exit code (0 success, 1 configuration error, 2 storage
// error, 3 authorization denied, 4 query error, 5 internal).
package main

import (
	"os"

	"kotobadb.dev/kotobadb/cli"
)

func main() {
	os.Exit(cli.Execute())
}
