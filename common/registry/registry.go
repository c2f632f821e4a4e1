// Package registry talks to the external participant registry: read
// one record, patch its status fields. Patches are RFC 7386 merge
// patches so settlement fields on the record are carried forward
// untouched.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	jsonpatch "github.com/evanphx/json-patch/v5"
)

// Client is the registry capability the completion saga consumes.
type Client interface {
	// GetRecord reads one registry record by reference
	GetRecord(ctx context.Context, ref string) (json.RawMessage, error)

	// MarkCompleted patches the record's status to "completed",
	// leaving every other field as-is. Safe to repeat.
	MarkCompleted(ctx context.Context, ref string) error
}

// StatusCompleted is the terminal registry status set by the saga
const StatusCompleted = "completed"

// buildStatusPatch computes the minimal merge patch that moves the
// record to the given status. Returns nil when the record already has
// that status.
func buildStatusPatch(original json.RawMessage, status string) ([]byte, error) {
	var doc map[string]interface{}
	if err := json.Unmarshal(original, &doc); err != nil {
		return nil, fmt.Errorf("decode registry record: %w", err)
	}

	if cur, ok := doc["status"].(string); ok && cur == status {
		return nil, nil
	}

	doc["status"] = status
	modified, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode modified record: %w", err)
	}

	patch, err := jsonpatch.CreateMergePatch(original, modified)
	if err != nil {
		return nil, fmt.Errorf("create merge patch: %w", err)
	}

	return patch, nil
}

// Memory is an in-process registry for tests and local development
// environments that run without the real registry service.
type Memory struct {
	mu      sync.Mutex
	records map[string]json.RawMessage
}

// NewMemory creates an empty in-memory registry
func NewMemory() *Memory {
	return &Memory{
		records: make(map[string]json.RawMessage),
	}
}

// Put seeds a record
func (m *Memory) Put(ref string, record json.RawMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[ref] = record
}

// GetRecord reads one record
func (m *Memory) GetRecord(ctx context.Context, ref string) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[ref]
	if !ok {
		return nil, fmt.Errorf("registry record not found: %s", ref)
	}
	return rec, nil
}

// MarkCompleted applies the status merge patch to the stored record
func (m *Memory) MarkCompleted(ctx context.Context, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[ref]
	if !ok {
		return fmt.Errorf("registry record not found: %s", ref)
	}

	patch, err := buildStatusPatch(rec, StatusCompleted)
	if err != nil {
		return err
	}
	if patch == nil {
		// Already completed
		return nil
	}

	patched, err := jsonpatch.MergePatch(rec, patch)
	if err != nil {
		return fmt.Errorf("apply merge patch: %w", err)
	}

	m.records[ref] = patched
	return nil
}
