// Pulse runs fixed-rate loops and reports how well they kept their pace.
package main

import (
	"github.com/sarchlab/pulse/cmd"
)

func main() {
	cmd.Execute()
}
