// Package main provides the admitline voice assistant CLI.
//
// Usage:
//
//	admitline [flags] <command>
//
// Commands:
//
//	serve    - Run the HTTP server
//	index    - Build the retrieval index and print statistics
//	leads    - List captured callback leads
//	config   - Configuration management
//
// Configuration is stored in ~/.admitline/ and supports multiple contexts;
// use 'admitline config' commands to manage them.
package main

import (
	"fmt"
	"os"

	"github.com/admitline/admitline/cmd/admitline/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
