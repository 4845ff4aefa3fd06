package models

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// AttachmentType tells item attachments from document library files.
type AttachmentType string

const (
	AttachmentTypeAttachment AttachmentType = "Attachment"
	AttachmentTypeDocLib     AttachmentType = "DocLib"
)

// Residency says where the bytes of an attachment live.
type Residency string

const (
	// ResidencyUpload: content cached locally and queued for the remote.
	ResidencyUpload Residency = "Upload"
	// ResidencyLocal: content cached locally, never pushed.
	ResidencyLocal Residency = "Local"
	// ResidencyServer: name-only placeholder, content lives on the remote.
	ResidencyServer Residency = "Server"
)

var keyUnsafe = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// AttachmentMeta identifies an attachment.
type AttachmentMeta struct {
	Type     AttachmentType
	ListName string
	Folder   string
	ParentID *int
	Filename string

	// TypeName is the fully-qualified entity type of a document library
	// snapshot.
	TypeName string

	// Snapshot is the serialized entity stored with a library file.
	Snapshot string
}

// Key derives the composite vault key of the attachment.
func (m *AttachmentMeta) Key() string {
	return cleanKey(strings.Join([]string{string(m.Type), m.ListName, m.Folder, parentPart(m.ParentID), m.Filename}, "_"))
}

// Prefix derives the key prefix shared by every file of the owner.
func (m *AttachmentMeta) Prefix() string {
	return Prefix(m.Type, m.ListName, m.Folder)
}

// Prefix derives the key prefix for an owner list and folder.
func Prefix(t AttachmentType, list, folder string) string {
	return cleanKey(strings.Join([]string{string(t), list, folder}, "_"))
}

// Parent returns the parent id or 0.
func (m *AttachmentMeta) Parent() int {
	if m.ParentID == nil {
		return 0
	}
	return *m.ParentID
}

// Buffer ids render as "b<n>" so that -1 and 1 produce different keys.
func parentPart(id *int) string {
	switch {
	case id == nil:
		return ""
	case *id < 0:
		return "b" + strconv.Itoa(-*id)
	default:
		return strconv.Itoa(*id)
	}
}

func cleanKey(s string) string {
	return keyUnsafe.ReplaceAllString(strings.ReplaceAll(s, "-", "_"), "")
}

// Attachment is a vault entry.
type Attachment struct {
	Key         string
	Meta        AttachmentMeta
	Residency   Residency
	Size        int64
	ContentHash string
	UploadedAt  time.Time

	// Content is nil when the bytes are not resident.
	Content []byte
}

// HasContent reports whether the bytes are cached locally.
func (a *Attachment) HasContent() bool {
	return a.ContentHash != ""
}

// FileName is a directory entry of an item's attachments.
type FileName struct {
	UploadDate time.Time
	Filename   string
}

// RemoteFile is a file as returned by the remote backend.
type RemoteFile struct {
	Filename   string
	Folder     string
	Size       int64
	Content    []byte
	Entity     []byte
	UploadedAt time.Time
}

// ResidencyFor applies the size threshold: content under it is cached.
func ResidencyFor(size, threshold int64) Residency {
	if size < threshold {
		return ResidencyUpload
	}
	return ResidencyServer
}
