// Package memstore is an in-memory implementation of the subset of CouchDB
// used by the views: documents with revisions, design documents and the
// evaluation of the views generated from a mapfn program.
//
// It behaves like a single CouchDB database: same errors, same collation and
// same view parameters.
package memstore

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cozy/cozy-autoviews/pkg/couchdb"
	"github.com/cozy/cozy-autoviews/pkg/couchdb/revision"
	"github.com/gofrs/uuid/v5"
)

const designPrefix = "_design/"

// Store is an in-memory database. It is safe for concurrent use.
type Store struct {
	name string
	mu   sync.RWMutex
	docs map[string]map[string]interface{}
}

// New returns an empty store for the database with the given name.
func New(name string) *Store {
	return &Store{
		name: name,
		docs: make(map[string]map[string]interface{}),
	}
}

// DBName returns the name of the database.
func (s *Store) DBName() string { return s.name }

// CheckStatus always succeeds: the store lives in the process.
func (s *Store) CheckStatus(ctx context.Context) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return 0, nil
}

// GetDoc fetches a document by its ID, out is filled with the document by
// json.Unmarshal-ing.
func (s *Store) GetDoc(ctx context.Context, id string, out interface{}) error {
	if id == "" {
		return errors.New("Missing ID for GetDoc")
	}
	s.mu.RLock()
	doc, ok := s.docs[id]
	var data []byte
	var err error
	if ok {
		data, err = json.Marshal(doc)
	}
	s.mu.RUnlock()
	if !ok {
		return couchdb.NewNotFoundError("missing")
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

// CreateNamedDoc persists a document with the given ID, and returns its
// revision. If the document already exists, it returns a conflict.
func (s *Store) CreateNamedDoc(ctx context.Context, id string, doc interface{}) (string, error) {
	if id == "" || strings.HasPrefix(id, "_") {
		return "", &couchdb.Error{
			StatusCode: http.StatusBadRequest,
			Name:       "bad_request",
			Reason:     "Only reserved document ids may start with underscore.",
		}
	}
	return s.put(id, "", doc)
}

// CreateDoc persists a document with a generated ID, and returns the ID and
// the revision.
func (s *Store) CreateDoc(ctx context.Context, doc interface{}) (string, string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", "", err
	}
	docID := strings.ReplaceAll(id.String(), "-", "")
	rev, err := s.put(docID, "", doc)
	if err != nil {
		return "", "", err
	}
	return docID, rev, nil
}

// UpdateDoc saves a new version of an existing document. rev must be the
// current revision of the document.
func (s *Store) UpdateDoc(ctx context.Context, id, rev string, doc interface{}) (string, error) {
	if rev == "" {
		return "", couchdb.NewConflictError()
	}
	return s.put(id, rev, doc)
}

// DeleteDoc removes a document. rev must be its current revision.
func (s *Store) DeleteDoc(ctx context.Context, id, rev string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return couchdb.NewNotFoundError("missing")
	}
	if doc["_rev"] != rev {
		return couchdb.NewConflictError()
	}
	delete(s.docs, id)
	return nil
}

// PutDesignDoc saves a design doc. Without a revision, it is a creation that
// fails with a conflict if the design doc already exists. The revision of doc
// is updated on success.
func (s *Store) PutDesignDoc(ctx context.Context, doc *couchdb.DesignDoc) error {
	if !strings.HasPrefix(doc.ID, designPrefix) || doc.ID == designPrefix {
		return &couchdb.Error{
			StatusCode: http.StatusBadRequest,
			Name:       "illegal_docid",
			Reason:     "Design document id must start with _design/",
		}
	}
	rev, err := s.put(doc.ID, doc.Rev, doc)
	if err != nil {
		return err
	}
	doc.Rev = rev
	return nil
}

// put stores a JSON copy of doc under id. An empty rev means a creation.
func (s *Store) put(id, rev string, doc interface{}) (string, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return "", err
	}
	if m == nil {
		return "", &couchdb.Error{
			StatusCode: http.StatusBadRequest,
			Name:       "bad_request",
			Reason:     "Document must be a JSON object",
		}
	}
	delete(m, "_rev")
	body, err := json.Marshal(m)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	current := ""
	if old, ok := s.docs[id]; ok {
		current, _ = old["_rev"].(string)
	}
	if current != rev {
		return "", couchdb.NewConflictError()
	}
	next := revision.Next(current, body)
	m["_id"] = id
	m["_rev"] = next
	s.docs[id] = m
	return next, nil
}

// snapshot returns the documents that are not design docs, sorted by id, and
// the requested design doc.
func (s *Store) snapshot(ddocID string) ([]map[string]interface{}, map[string]interface{}) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ddoc := s.docs[ddocID]
	docs := make([]map[string]interface{}, 0, len(s.docs))
	for id, doc := range s.docs {
		if !strings.HasPrefix(id, designPrefix) {
			docs = append(docs, doc)
		}
	}
	sort.Slice(docs, func(i, j int) bool {
		return docs[i]["_id"].(string) < docs[j]["_id"].(string)
	})
	return docs, ddoc
}
