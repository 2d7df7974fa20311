// corridord-mcp bridges a running corridord daemon to the Model Context
// Protocol over stdio.
package main

import (
	"fmt"
	"os"

	"github.com/alignworks/corridord/pkg/mcp"
)

func main() {
	s := mcp.NewServer(os.Getenv("CORRIDORD_URL"))
	if err := s.Serve(); err != nil {
		fmt.Fprintf(os.Stderr, "mcp server failed: %v\n", err)
		os.Exit(1)
	}
}
