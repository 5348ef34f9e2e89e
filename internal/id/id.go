// Package id generates prefixed NanoIDs for scrape jobs and SSE clients.
package id

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Prefixes in use.
const (
	PrefixScrapeJob = "scrape"
	PrefixClient    = "sse"
)

// alphabet is lowercase alphanumerics so ids are easy to copy from logs and
// the CLI.
const (
	alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	length   = 16
)

// Generate returns prefix-<16 chars>, e.g. "scrape-3k9x0q2m7tz1b8cw".
//
// Returns an error if the system has insufficient entropy.
func Generate(prefix string) (string, error) {
	id, err := gonanoid.Generate(alphabet, length)
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}
