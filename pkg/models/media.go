package models

import "time"

// MediaFile is one entry of the attachments directory.
type MediaFile struct {
	Name       string    `json:"name"`
	Kind       string    `json:"kind"` // image, video, audio
	Size       int64     `json:"size"`
	SizeHuman  string    `json:"size_human"`
	URL        string    `json:"url"`
	ModifiedAt time.Time `json:"modified_at"`
}

// UploadResult lists the stored names of an upload request. Rejected maps an
// original file name to the reason it was refused.
type UploadResult struct {
	OK       bool              `json:"ok"`
	Message  string            `json:"message,omitempty"`
	Files    []string          `json:"files"`
	Rejected map[string]string `json:"rejected,omitempty"`
}
