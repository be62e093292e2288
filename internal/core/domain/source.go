package domain

// ConnectorParameters is the opaque key/value bag a connector is configured
// with (tokens, paths, filters). The schema is provider-specific; each
// connector validates and converts it into its own typed config.
type ConnectorParameters map[string]any

// String returns the string value for key, or "" when absent or not a string.
func (p ConnectorParameters) String(key string) string {
	if p == nil {
		return ""
	}
	s, _ := p[key].(string)
	return s
}

// DestinationConfig holds the few fields needed to reach the destination
// knowledge base for one source.
type DestinationConfig struct {
	// Endpoint is the knowledge-base API base URL.
	Endpoint string `json:"endpoint"`

	// APIKey authenticates upload calls.
	APIKey string `json:"apiKey"`

	// KnowledgeBox is the target knowledge-box identifier.
	KnowledgeBox string `json:"knowledgeBox"`
}

// Source is a configured synchronisation source. The persisted store is the
// single owner; the orchestrator only holds transient copies during a pass.
type Source struct {
	// ConnectorID selects the connector implementation.
	ConnectorID string `json:"connectorId"`

	// Parameters configures the connector (provider-specific).
	Parameters ConnectorParameters `json:"parameters,omitempty"`

	// Destination is where synced content is uploaded. A source without a
	// destination is configured but inactive.
	Destination *DestinationConfig `json:"destination,omitempty"`

	// Items are the objects queued or processed for upload.
	Items []SyncItem `json:"items,omitempty"`

	// Folders are the containers selected for incremental collection.
	Folders []SyncItem `json:"folders,omitempty"`

	// PermanentSync enables the periodic last-modified collection pass.
	PermanentSync bool `json:"permanentSync,omitempty"`

	// LastSyncGMT is the watermark of the last successful collection.
	LastSyncGMT string `json:"lastSyncGMT,omitempty"`

	// Total counts items uploaded over the lifetime of the source.
	Total int `json:"total,omitempty"`
}

// PendingItems returns the items not yet uploaded, capped at limit.
// A limit <= 0 means no cap.
func (s *Source) PendingItems(limit int) []SyncItem {
	var pending []SyncItem
	for _, item := range s.Items {
		if item.Status == StatusUploaded {
			continue
		}
		pending = append(pending, item)
		if limit > 0 && len(pending) == limit {
			break
		}
	}
	return pending
}

// QueueItem adds a collected item to the upload queue. An untracked item is
// appended as pending. A tracked item is re-queued only when it was already
// uploaded and the provider now reports a strictly newer modification time;
// the replacement keeps the tracked UUID so the item's identity is stable
// across re-uploads. Returns true when the queue changed.
func (s *Source) QueueItem(item SyncItem) bool {
	for i := range s.Items {
		existing := &s.Items[i]
		if existing.OriginalID != item.OriginalID {
			continue
		}
		if existing.Status != StatusUploaded || item.ModifiedGMT == "" || item.ModifiedGMT <= existing.ModifiedGMT {
			return false
		}
		item.UUID = existing.UUID
		item.Status = StatusPending
		*existing = item
		return true
	}
	item.Status = StatusPending
	s.Items = append(s.Items, item)
	return true
}

// HasItem reports whether an item with the given provider id is already tracked.
func (s *Source) HasItem(originalID string) bool {
	for _, item := range s.Items {
		if item.OriginalID == originalID {
			return true
		}
	}
	return false
}

// SetItemStatus updates the status of the tracked item with the given
// provider id, enforcing the forward-only transition rule. It returns false
// when the item is unknown or the transition is not allowed.
func (s *Source) SetItemStatus(originalID string, status FileStatus) bool {
	for i := range s.Items {
		if s.Items[i].OriginalID != originalID {
			continue
		}
		if !s.Items[i].Status.CanTransition(status) {
			return false
		}
		s.Items[i].Status = status
		return true
	}
	return false
}
