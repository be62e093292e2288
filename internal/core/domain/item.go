package domain

// FileStatus is the upload lifecycle state of a synced item. Transitions are
// strictly forward; a finished item never re-enters the queue on its own.
type FileStatus string

const (
	StatusPending    FileStatus = "PENDING"
	StatusProcessing FileStatus = "PROCESSING"
	StatusUploaded   FileStatus = "UPLOADED"
	StatusError      FileStatus = "ERROR"
)

// CanTransition reports whether moving from s to the given status is allowed.
// PENDING→PROCESSING→(UPLOADED|ERROR); UPLOADED and ERROR are terminal.
func (s FileStatus) CanTransition(to FileStatus) bool {
	switch s {
	case StatusPending:
		return to == StatusProcessing
	case StatusProcessing:
		return to == StatusUploaded || to == StatusError
	default:
		return false
	}
}

// SyncItem is one object tracked for synchronisation: a file, page or folder
// as the provider reports it.
type SyncItem struct {
	// UUID identifies the item within this engine.
	UUID string `json:"uuid,omitempty"`

	// Title is the display name, usually the filename.
	Title string `json:"title"`

	// OriginalID is the provider-side identifier. It is stable across polls
	// and is the deduplication key.
	OriginalID string `json:"originalId"`

	// Metadata carries provider-specific hints such as mimeType or a
	// pre-authenticated download URL.
	Metadata map[string]string `json:"metadata,omitempty"`

	// Status is the upload lifecycle state.
	Status FileStatus `json:"status,omitempty"`

	// ModifiedGMT is the provider modification time as an RFC 3339 UTC
	// string, compared lexically.
	ModifiedGMT string `json:"modifiedGMT,omitempty"`

	// IsFolder marks container entries returned by folder listings.
	IsFolder bool `json:"isFolder,omitempty"`
}

// Link is a reference the destination fetches itself instead of receiving
// uploaded content.
type Link struct {
	URI          string            `json:"uri"`
	ExtraHeaders map[string]string `json:"extraHeaders,omitempty"`
}
