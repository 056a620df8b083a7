package model

// An Artifact represents a reassembled file handed off to a sink.
type Artifact struct {
	Base `json:",inline" storm:"inline"`

	SessionID   string `json:"session_id"   storm:"index"`
	Key         string `json:"key"          storm:"index"`
	Sink        string `json:"sink"`
	Location    string `json:"location"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
	Checksum    string `json:"checksum"`
}
