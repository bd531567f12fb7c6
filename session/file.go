package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/osok/agent-patterns/core"
)

// FileStore persists sessions as one JSON document per session under a base
// directory. Writes go through a temp file and rename so a crash never leaves
// a truncated session on disk. Safe for concurrent use within one process;
// cross-process locking is out of scope.
type FileStore struct {
	mu  sync.Mutex
	dir string
}

// NewFileStore creates the base directory if needed and returns the store.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("session dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Get loads the session from disk, creating it if absent.
func (s *FileStore) Get(sessionID string) (*core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadOrCreateLocked(sessionID)
}

// Create writes a fresh session document, overwriting any existing one.
func (s *FileStore) Create(sessionID string) (*core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := core.NewSession(sessionID)
	if err := s.writeLocked(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// AppendEvent loads the session, appends the event and writes it back.
func (s *FileStore) AppendEvent(sessionID string, ev core.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.loadOrCreateLocked(sessionID)
	if err != nil {
		return err
	}
	sess.AddEvent(ev)
	return s.writeLocked(sess)
}

// ApplyDelta loads the session, merges the delta and writes it back.
func (s *FileStore) ApplyDelta(sessionID string, delta map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.loadOrCreateLocked(sessionID)
	if err != nil {
		return err
	}
	sess.MergeState(delta)
	return s.writeLocked(sess)
}

func (s *FileStore) path(sessionID string) string {
	// Session IDs are caller supplied; flatten anything path-like.
	safe := strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(sessionID)
	return filepath.Join(s.dir, safe+".json")
}

func (s *FileStore) loadOrCreateLocked(sessionID string) (*core.Session, error) {
	data, err := os.ReadFile(s.path(sessionID))
	if os.IsNotExist(err) {
		sess := core.NewSession(sessionID)
		if err := s.writeLocked(sess); err != nil {
			return nil, err
		}
		return sess, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session %s: %w", sessionID, err)
	}

	var doc sessionDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", sessionID, err)
	}

	return doc.toSession(), nil
}

func (s *FileStore) writeLocked(sess *core.Session) error {
	doc := fromSession(sess)
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session %s: %w", sess.ID, err)
	}

	path := s.path(sess.ID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write session %s: %w", sess.ID, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename session %s: %w", sess.ID, err)
	}
	return nil
}

// sessionDoc is the on-disk shape. Content parts are flattened into tagged
// records because core.Part is an interface and cannot round-trip through
// encoding/json on its own.
type sessionDoc struct {
	ID       string            `json:"id"`
	State    map[string]any    `json:"state"`
	Events   []eventDoc        `json:"events"`
	Created  time.Time         `json:"created"`
	Updated  time.Time         `json:"updated"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type eventDoc struct {
	ID           string            `json:"id"`
	RunID        string            `json:"run_id"`
	Author       string            `json:"author"`
	Actions      core.EventActions `json:"actions"`
	Branch       *string           `json:"branch,omitempty"`
	Timestamp    time.Time         `json:"timestamp"`
	Role         string            `json:"role,omitempty"`
	Parts        []partDoc         `json:"parts,omitempty"`
	Partial      *bool             `json:"partial,omitempty"`
	TurnComplete *bool             `json:"turn_complete,omitempty"`
	ErrorCode    *string           `json:"error_code,omitempty"`
	ErrorMessage *string           `json:"error_message,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

type partDoc struct {
	Type     string             `json:"type"`
	Text     string             `json:"text,omitempty"`
	Data     map[string]any     `json:"data,omitempty"`
	Call     *core.FunctionCall `json:"call,omitempty"`
	Response *responseDoc       `json:"response,omitempty"`
}

type responseDoc struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Response any    `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
}

func fromSession(sess *core.Session) sessionDoc {
	doc := sessionDoc{
		ID:       sess.ID,
		State:    sess.State,
		Created:  sess.Created,
		Updated:  sess.Updated,
		Metadata: sess.Metadata,
	}
	for _, ev := range sess.GetEvents() {
		doc.Events = append(doc.Events, fromEvent(ev))
	}
	return doc
}

func fromEvent(ev core.Event) eventDoc {
	doc := eventDoc{
		ID:           ev.ID,
		RunID:        ev.RunID,
		Author:       ev.Author,
		Actions:      ev.Actions,
		Branch:       ev.Branch,
		Timestamp:    ev.Timestamp,
		Partial:      ev.Partial,
		TurnComplete: ev.TurnComplete,
		ErrorCode:    ev.ErrorCode,
		ErrorMessage: ev.ErrorMessage,
		Metadata:     ev.Metadata,
	}
	if ev.Content == nil {
		return doc
	}
	doc.Role = ev.Content.Role
	for _, p := range ev.Content.Parts {
		switch part := p.(type) {
		case core.TextPart:
			doc.Parts = append(doc.Parts, partDoc{Type: "text", Text: part.Text})
		case core.DataPart:
			doc.Parts = append(doc.Parts, partDoc{Type: "data", Data: part.Data})
		case core.FunctionCallPart:
			call := part.FunctionCall
			doc.Parts = append(doc.Parts, partDoc{Type: "function_call", Call: &call})
		case core.FunctionResponsePart:
			doc.Parts = append(doc.Parts, partDoc{Type: "function_response", Response: &responseDoc{
				ID:       part.FunctionResponse.ID,
				Name:     part.FunctionResponse.Name,
				Response: part.FunctionResponse.Response,
				Error:    part.FunctionResponse.Error,
			}})
		}
	}
	return doc
}

func (doc sessionDoc) toSession() *core.Session {
	sess := core.NewSession(doc.ID)
	if doc.State != nil {
		sess.State = doc.State
	}
	sess.Created = doc.Created
	sess.Updated = doc.Updated
	if doc.Metadata != nil {
		sess.Metadata = doc.Metadata
	}
	for _, ed := range doc.Events {
		sess.Events = append(sess.Events, ed.toEvent())
	}
	return sess
}

func (doc eventDoc) toEvent() core.Event {
	ev := core.Event{
		ID:           doc.ID,
		RunID:        doc.RunID,
		Author:       doc.Author,
		Actions:      doc.Actions,
		Branch:       doc.Branch,
		Timestamp:    doc.Timestamp,
		Partial:      doc.Partial,
		TurnComplete: doc.TurnComplete,
		ErrorCode:    doc.ErrorCode,
		ErrorMessage: doc.ErrorMessage,
		Metadata:     doc.Metadata,
	}
	if len(doc.Parts) == 0 && doc.Role == "" {
		return ev
	}
	content := &core.Content{Role: doc.Role}
	for _, pd := range doc.Parts {
		switch pd.Type {
		case "text":
			content.Parts = append(content.Parts, core.TextPart{Text: pd.Text})
		case "data":
			content.Parts = append(content.Parts, core.DataPart{Data: pd.Data})
		case "function_call":
			if pd.Call != nil {
				content.Parts = append(content.Parts, core.FunctionCallPart{FunctionCall: *pd.Call})
			}
		case "function_response":
			if pd.Response != nil {
				content.Parts = append(content.Parts, core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{
					ID:       pd.Response.ID,
					Name:     pd.Response.Name,
					Response: pd.Response.Response,
					Error:    pd.Response.Error,
				}})
			}
		}
	}
	if len(content.Parts) > 0 {
		ev.Content = content
	}
	return ev
}
