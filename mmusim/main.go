// Command mmusim simulates the address translation and the caching of a
// memory-management unit.
package main

import (
	"github.com/tebeka/atexit"

	"github.com/sarchlab/mmusim/mmusim/cmd"
)

func main() {
	cmd.Execute()
	atexit.Exit(0)
}
