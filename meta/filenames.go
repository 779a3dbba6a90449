// Copyright 2012 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package meta

import (
	"fmt"
	"path/filepath"
)

// FileType distinguishes the kinds of files living under a property
// directory (§6).
type FileType int

const (
	FileTypeUnstableTable FileType = iota
	FileTypeUnstableBuffer
	FileTypeStableTable
	FileTypeStableBuffer
	FileTypeMetadata
)

// PropertyDir returns the per-property subdirectory all of a property's
// table/buffer files live under (§6), rooted at the store's base dir.
func PropertyDir(dir string, propertyID uint32) string {
	return filepath.Join(dir, fmt.Sprintf("property-%d", propertyID))
}

// UnstableTablePath returns the path of unstable slot id's sorted table.
func UnstableTablePath(dir string, slot int) string {
	return filepath.Join(dir, fmt.Sprintf("unstable-%d.prop", slot))
}

// UnstableBufferPath returns the path of unstable slot id's overlay
// buffer.
func UnstableBufferPath(dir string, slot int) string {
	return filepath.Join(dir, fmt.Sprintf("unstable-%d.buf", slot))
}

// StableTablePath returns the path of stable file id's sorted table.
func StableTablePath(dir string, id uint64) string {
	return filepath.Join(dir, fmt.Sprintf("stable-%d.prop", id))
}

// StableBufferPath returns the path of stable file id's overlay buffer.
func StableBufferPath(dir string, id uint64) string {
	return filepath.Join(dir, fmt.Sprintf("stable-%d.buf", id))
}

// MetadataPath returns the path of the property store's metadata file.
func MetadataPath(dir string) string {
	return filepath.Join(dir, "META")
}

// MetadataTempPath returns the temp path force() writes to before the
// atomic rename onto MetadataPath (§4.7).
func MetadataTempPath(dir string) string {
	return filepath.Join(dir, "META.tmp")
}
