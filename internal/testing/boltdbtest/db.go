// Package boltdbtest provides temporary BoltDB databases for use in tests.
package boltdbtest

import (
	"context"
	"os"
	"path/filepath"

	"github.com/louteranas/nomad-viewer/internal/x/bboltx"
	"go.etcd.io/bbolt"
)

// Open opens a BoltDB database in a new temporary directory.
//
// The returned function closes the database and removes the directory. It
// must be used instead of DB.Close().
func Open() (*bbolt.DB, func()) {
	dir, err := os.MkdirTemp("", "boltdbtest-*")
	if err != nil {
		panic(err)
	}

	db, err := bboltx.Open(
		context.Background(),
		filepath.Join(dir, "test.boltdb"),
		0,
		nil,
	)
	if err != nil {
		os.RemoveAll(dir)
		panic(err)
	}

	return db, func() {
		db.Close()
		os.RemoveAll(dir)
	}
}

// Path returns the path of a database file in a new temporary directory,
// without creating the file.
//
// The returned function removes the directory.
func Path() (string, func()) {
	dir, err := os.MkdirTemp("", "boltdbtest-*")
	if err != nil {
		panic(err)
	}

	return filepath.Join(dir, "test.boltdb"), func() {
		os.RemoveAll(dir)
	}
}
