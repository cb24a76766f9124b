//go:build !cgo

package store

import "errors"

// errNeedsCGO is returned by the embedded database drivers in builds without cgo.
var errNeedsCGO = errors.New("store: driver requires a cgo-enabled build; use the memory driver")

// NewSQLiteStore is unavailable without cgo.
func NewSQLiteStore(string) (Store, error) {
	return nil, errNeedsCGO
}

// NewKuzuFileStore is unavailable without cgo.
func NewKuzuFileStore(string) (Store, error) {
	return nil, errNeedsCGO
}
