package memory

import "time"

// RecordType classifies a memory record.
type RecordType string

const (
	// Semantic memory holds facts and knowledge ("the user prefers Python").
	Semantic RecordType = "semantic"
	// Episodic memory holds past experiences ("last run failed on step 3").
	Episodic RecordType = "episodic"
	// Procedural memory holds learned procedures ("to deploy, run make release").
	Procedural RecordType = "procedural"
)

// TypeMetadataKey is the metadata key used to route records by type.
const TypeMetadataKey = "memory_type"

// Record is a stored memory snippet.
type Record struct {
	ID        string         `json:"id"`
	SessionID string         `json:"session_id"`
	Content   string         `json:"content"`
	Type      RecordType     `json:"type"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Created   time.Time      `json:"created"`
}

// TypeOf extracts the record type from metadata, defaulting to Semantic.
func TypeOf(metadata map[string]any) RecordType {
	if metadata == nil {
		return Semantic
	}
	switch v := metadata[TypeMetadataKey].(type) {
	case RecordType:
		return v
	case string:
		switch RecordType(v) {
		case Semantic, Episodic, Procedural:
			return RecordType(v)
		}
	}
	return Semantic
}
