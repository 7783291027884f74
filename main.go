package main

import (
	"github.com/veracity-sec/correlator/cmd"
)

// main is the entry point for the correlator CLI.
func main() {
	cmd.Execute()
}
