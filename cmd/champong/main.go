package main

import (
	"fmt"
	"os"

	"github.com/0888060509/champong-admin/cmd/champong/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
