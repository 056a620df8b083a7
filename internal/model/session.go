package model

import "time"

// A Session holds the metadata of a chunked upload. The chunk bytes live in the storage backend.
type Session struct {
	Base `json:",inline" storm:"inline"`

	SessionID   string    `json:"session_id"   storm:"unique"`
	FileName    string    `json:"file_name"`
	FileSize    int64     `json:"file_size"`
	TotalChunks int       `json:"total_chunks"`
	ContentType string    `json:"content_type"`
	Checksum    string    `json:"checksum"`
	LastSeenAt  time.Time `json:"last_seen_at" storm:"index"`
}

// Expired returns true when the session has not been seen since ttl.
func (s *Session) Expired(now time.Time, ttl time.Duration) bool {
	return s.LastSeenAt.Add(ttl).Before(now)
}
