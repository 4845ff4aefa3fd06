package models

import "time"

// File describes a stored file. The bytes live in object storage under
// StorageKey.
//
// Item attachments have an ItemID and an empty Folder; document library
// files have ItemID 0 and a Folder.
type File struct {
	List     string
	ItemID   int
	Folder   string
	Filename string
	Size     int64

	StorageKey string
	// Entity is the optional JSON snapshot stored with a library file.
	Entity     []byte
	UploadedAt time.Time
}

// IsLibrary reports whether f belongs to a document library folder.
func (f *File) IsLibrary() bool {
	return f.ItemID == 0
}
