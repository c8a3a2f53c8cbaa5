// Copyright IBM Corp. 2023, 2025

package main

import "github.com/hashicorp/go-repack/cmd"

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// main start go-repack cli `repack`
func main() {
	cmd.Run(version, commit, date)
}
