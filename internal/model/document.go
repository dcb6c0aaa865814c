package model

import "time"

// Document is a persisted uploaded PDF. The FileHash is the SHA-256 digest
// of the raw file bytes and is unique among stored documents.
type Document struct {
	ID               string
	Family           DocumentFamily
	OriginalFilename string
	StoredPath       string
	FileHash         string
	PageCount        int
	FileSizeBytes    int64
	UploadedAt       time.Time
}

// DuplicateGroup is a set of persisted transactions sharing one fingerprint,
// reported by duplicate discovery when the group has more than one member.
type DuplicateGroup struct {
	Fingerprint  string
	Transactions []Transaction
}
