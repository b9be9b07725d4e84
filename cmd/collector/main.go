// collector-service: job feed ingestion
//
// Fetches RSS/Atom feeds, board APIs (Greenhouse, Lever) and JSON-LD
// careers pages, normalises every posting into a job record and stores it
// in PostgreSQL, skipping postings already seen for the same source.
//
// Subcommands:
//   - serve:   HTTP API + optional periodic feed collection (default)
//   - collect: one-shot collection of a single feed
//   - migrate: create the jobs table and indexes
//   - version: print the build version
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
