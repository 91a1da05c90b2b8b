// Package domain contains the core business entities for MediaHost.
package domain

import (
	"time"
)

// ChunkPayloadSize is the maximum payload size of a single stored chunk row,
// in uncompressed bytes (15 MiB).
const ChunkPayloadSize = 15728640

// PrivacyType controls who may view a piece of content.
type PrivacyType int

const (
	// PrivacyPublic content is visible to anyone.
	PrivacyPublic PrivacyType = 0

	// PrivacyUnlisted content is served to anyone holding the link but
	// excluded from any public enumeration.
	PrivacyUnlisted PrivacyType = 1

	// PrivacyPrivate content is visible only to its owner
	// (and callers holding the view-private-content right).
	PrivacyPrivate PrivacyType = 2
)

// PrivacyFromID maps a stored privacy id to a PrivacyType.
// Unknown ids default to public, matching historical rows.
func PrivacyFromID(id int) PrivacyType {
	switch PrivacyType(id) {
	case PrivacyUnlisted:
		return PrivacyUnlisted
	case PrivacyPrivate:
		return PrivacyPrivate
	default:
		return PrivacyPublic
	}
}

// PrivacyFromName maps an API privacy name to a PrivacyType.
func PrivacyFromName(name string) PrivacyType {
	switch name {
	case "unlisted":
		return PrivacyUnlisted
	case "private":
		return PrivacyPrivate
	default:
		return PrivacyPublic
	}
}

// String returns the API name of the privacy type.
func (p PrivacyType) String() string {
	switch p {
	case PrivacyUnlisted:
		return "unlisted"
	case PrivacyPrivate:
		return "private"
	default:
		return "public"
	}
}

// Content is the durable metadata record of an uploaded file.
// It is written once, when an upload stream finishes.
type Content struct {
	// ContentID is the short, lowercase, unique identifier of the upload.
	ContentID string `json:"content_id"`

	// UserID is the owning user.
	UserID int64 `json:"user_id"`

	// Privacy controls visibility of the content.
	Privacy PrivacyType `json:"privacy"`

	// FileName is the display file name.
	FileName string `json:"file_name"`

	// CreatedAt is the timestamp when the upload finished.
	CreatedAt time.Time `json:"created_at"`
}

// NewContent creates a Content metadata record.
func NewContent(contentID string, userID int64, privacy PrivacyType, fileName string) *Content {
	return &Content{
		ContentID: contentID,
		UserID:    userID,
		Privacy:   privacy,
		FileName:  fileName,
		CreatedAt: time.Now().UTC(),
	}
}

// Chunk is one fixed-maximum-size, optionally compressed slice of an
// uploaded file's bytes, persisted as an independent durable row.
type Chunk struct {
	// ContentID identifies the upload this chunk belongs to.
	ContentID string

	// Index is the zero-based sequence index of the chunk.
	Index int32

	// TotalSize is the declared total uncompressed size of the whole upload.
	TotalSize int64

	// Compressed records whether Payload holds gzip output. It is set
	// iff compression strictly reduced the chunk's size.
	Compressed bool

	// Payload holds the chunk bytes, compressed or raw per the flag.
	Payload []byte
}
