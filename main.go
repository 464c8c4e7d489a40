// Package main is the entry point for the regotest CLI.
package main

import "regotest.dev/pkg/regotest/cmd"

func main() {
	cmd.Execute()
}
