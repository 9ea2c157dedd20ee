package database

import (
	"os"

	"github.com/cockroachdb/pebble"
)

func NewPebble(path string) (*pebble.DB, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, err
	}
	return pebble.Open(path, &pebble.Options{})
}
