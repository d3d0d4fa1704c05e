package backend

import (
	"strings"
	"sync"
)

// Document is a free-form document record keyed by (client, type). It is a
// flat field map (status, income, signature flags, ...) so fixtures can model
// any document shape.
type Document map[string]any

// DocumentStore simulates client document storage. Reads normalize common
// document-type spellings ("driver's license", "tax return", "IRA form") to
// the canonical stored names so agent-chosen names resolve.
type DocumentStore struct {
	mu   sync.RWMutex
	docs map[string]map[string]Document
}

// Canonical document type names.
const (
	DocDriversLicense = "drivers_license"
	DocTaxReturn      = "tax_return"
	DocIRAApplication = "ira_application"
)

// NewDocumentStore constructs a store seeded with per-client documents.
func NewDocumentStore(docs map[string]map[string]Document) *DocumentStore {
	if docs == nil {
		docs = map[string]map[string]Document{}
	}
	return &DocumentStore{docs: docs}
}

// NormalizeDocType maps informal document type names onto stored names.
// Unrecognized names pass through unchanged.
func NormalizeDocType(docType string) string {
	d := strings.ToLower(strings.TrimSpace(docType))
	switch {
	case strings.Contains(d, "driver") || strings.Contains(d, "license"):
		return DocDriversLicense
	case strings.Contains(d, "tax") || strings.Contains(d, "return") || strings.Contains(d, "income"):
		return DocTaxReturn
	case strings.Contains(d, "application"), strings.Contains(d, "ira") && strings.Contains(d, "form"):
		return DocIRAApplication
	case d == "roth_ira" || d == "traditional_ira" || d == "roth ira" || d == "traditional ira":
		return DocIRAApplication
	default:
		return d
	}
}

// Get returns a copy of the document and whether it exists.
func (s *DocumentStore) Get(clientID, docType string) (Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byType, ok := s.docs[clientID]
	if !ok {
		return nil, false
	}
	doc, ok := byType[NormalizeDocType(docType)]
	if !ok {
		return nil, false
	}
	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out, true
}

// Put creates or replaces a document (idempotent upsert).
func (s *DocumentStore) Put(clientID, docType string, doc Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byType, ok := s.docs[clientID]
	if !ok {
		byType = map[string]Document{}
		s.docs[clientID] = byType
	}
	stored := make(Document, len(doc))
	for k, v := range doc {
		stored[k] = v
	}
	byType[NormalizeDocType(docType)] = stored
}

// Update merges fields into an existing document. Returns false when the
// document does not exist.
func (s *DocumentStore) Update(clientID, docType string, fields Document) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	byType, ok := s.docs[clientID]
	if !ok {
		return false
	}
	doc, ok := byType[NormalizeDocType(docType)]
	if !ok {
		return false
	}
	for k, v := range fields {
		doc[k] = v
	}
	return true
}

// List returns the document types stored for a client.
func (s *DocumentStore) List(clientID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byType, ok := s.docs[clientID]
	if !ok {
		return nil
	}
	types := make([]string, 0, len(byType))
	for t := range byType {
		types = append(types, t)
	}
	return types
}
