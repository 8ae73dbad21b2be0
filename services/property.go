package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"realtors/auth"
	"realtors/models"
	"realtors/storage"
)

const propertiesPath = "properties"

// DefaultTimeout bounds every store call made by PropertyService.
const DefaultTimeout = 10 * time.Second

var ErrNotFound = errors.New("property not found")

// AuditRecorder accepts audit entries without blocking.
type AuditRecorder interface {
	Record(entry models.AuditEntry)
}

// PropertyService is the only path to property records in the tree store.
type PropertyService struct {
	tree    storage.TreeStore
	blobs   storage.BlobStore
	audit   AuditRecorder
	timeout time.Duration

	mu        sync.Mutex
	listeners []func()
}

func NewPropertyService(tree storage.TreeStore, blobs storage.BlobStore, audit AuditRecorder, timeout time.Duration) *PropertyService {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &PropertyService{
		tree:    tree,
		blobs:   blobs,
		audit:   audit,
		timeout: timeout,
	}
}

// OnChange registers fn to run after every successful write.
func (s *PropertyService) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// ListAll returns every record, pending ones included, in key order.
// Records that cannot be decoded are skipped with a warning.
func (s *PropertyService) ListAll(ctx context.Context) ([]models.Property, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var nodes map[string]json.RawMessage
	ok, err := s.tree.Get(ctx, propertiesPath, &nodes)
	if err != nil {
		return nil, fmt.Errorf("list properties: %w", err)
	}
	if !ok {
		return []models.Property{}, nil
	}

	keys := make([]string, 0, len(nodes))
	for k := range nodes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	props := make([]models.Property, 0, len(keys))
	for _, k := range keys {
		var p models.Property
		if err := json.Unmarshal(nodes[k], &p); err != nil {
			log.Printf("Warning: skipping unreadable property %s: %v", k, err)
			continue
		}
		p.ID = k
		props = append(props, p)
	}
	return props, nil
}

// GetByID returns nil, nil when the record does not exist.
func (s *PropertyService) GetByID(ctx context.Context, id string) (*models.Property, error) {
	if !validKey(id) {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var p models.Property
	ok, err := s.tree.Get(ctx, recordPath(id), &p)
	if err != nil {
		return nil, fmt.Errorf("get property %s: %w", id, err)
	}
	if !ok {
		return nil, nil
	}
	p.ID = id
	return &p, nil
}

// Create validates p and stores it under a new key, which it returns.
func (s *PropertyService) Create(ctx context.Context, p models.Property) (string, error) {
	if p.Approval == "" {
		p.Approval = models.ApprovalApproved
	}
	return s.create(ctx, p)
}

// Submit stores a public submission. It stays hidden until approved.
func (s *PropertyService) Submit(ctx context.Context, p models.Property) (string, error) {
	p.Approval = models.ApprovalPending
	p.Featured = false
	p.Popular = false
	return s.create(ctx, p)
}

func (s *PropertyService) create(ctx context.Context, p models.Property) (string, error) {
	p.Normalize()
	if err := p.Validate(); err != nil {
		return "", err
	}

	node, err := toNode(p)
	if err != nil {
		return "", err
	}
	node["createdAt"] = storage.ServerTimestamp()
	node["updatedAt"] = storage.ServerTimestamp()

	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	id, err := s.tree.Push(opCtx, propertiesPath, node)
	if err != nil {
		return "", fmt.Errorf("create property: %w", err)
	}

	s.record(ctx, models.AuditPropertyCreated, id, map[string]string{
		"title":    p.Title,
		"approval": p.Approval,
	})
	s.changed()
	return id, nil
}

// Update merges fields into an existing record. Fields not named are left
// alone and a nil value clears that field. The existence check and the write
// are separate store calls: a delete racing an update wins or loses by
// arrival order (last write wins), and an update landing after a delete can
// leave a partial node behind.
func (s *PropertyService) Update(ctx context.Context, id string, fields map[string]interface{}) error {
	patch, err := models.ValidatePatch(fields)
	if err != nil {
		return err
	}

	current, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if current == nil {
		return ErrNotFound
	}

	update, err := models.PatchValues(fields, patch)
	if err != nil {
		return err
	}
	propertyType := current.PropertyType
	if _, ok := fields["propertyType"]; ok {
		propertyType = patch.PropertyType
	}
	if !propertyType.Residential() {
		update["beds"] = nil
		update["baths"] = nil
	}
	update["updatedAt"] = storage.ServerTimestamp()

	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.tree.Update(opCtx, recordPath(id), update); err != nil {
		return fmt.Errorf("update property %s: %w", id, err)
	}

	s.record(ctx, models.AuditPropertyUpdated, id, map[string]string{
		"fields": strings.Join(sortedKeys(fields), ","),
	})
	s.changed()
	return nil
}

// Approve makes a pending submission public.
func (s *PropertyService) Approve(ctx context.Context, id string) error {
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if current == nil {
		return ErrNotFound
	}

	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err = s.tree.Update(opCtx, recordPath(id), map[string]interface{}{
		"approval":  models.ApprovalApproved,
		"updatedAt": storage.ServerTimestamp(),
	})
	if err != nil {
		return fmt.Errorf("approve property %s: %w", id, err)
	}

	s.record(ctx, models.AuditPropertyApproved, id, nil)
	s.changed()
	return nil
}

// Delete removes the record, then its images. Image failures are logged and
// do not stop the remaining deletions or fail the call.
func (s *PropertyService) Delete(ctx context.Context, id string) error {
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if current == nil {
		return ErrNotFound
	}

	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	err = s.tree.Delete(opCtx, recordPath(id))
	cancel()
	if err != nil {
		return fmt.Errorf("delete property %s: %w", id, err)
	}

	removed := s.deleteImages(ctx, id, current.Images)

	s.record(ctx, models.AuditPropertyDeleted, id, map[string]string{
		"title":  current.Title,
		"images": fmt.Sprintf("%d/%d", removed, len(current.Images)),
	})
	s.changed()
	return nil
}

func (s *PropertyService) deleteImages(ctx context.Context, id string, images []string) int {
	if s.blobs == nil {
		return 0
	}
	removed := 0
	for _, url := range images {
		key, ok := s.blobs.KeyFromURL(url)
		if !ok {
			log.Printf("Warning: property %s image %s is not in the blob store, skipping", id, url)
			continue
		}
		opCtx, cancel := context.WithTimeout(ctx, s.timeout)
		err := s.blobs.Delete(opCtx, key)
		cancel()
		if err != nil {
			log.Printf("Warning: failed to delete image %s of property %s: %v", key, id, err)
			continue
		}
		removed++
	}
	return removed
}

func (s *PropertyService) record(ctx context.Context, action models.AuditAction, id string, details map[string]string) {
	if s.audit == nil {
		return
	}
	s.audit.Record(models.AuditEntry{
		Action:     action,
		PropertyID: id,
		Actor:      auth.Actor(ctx),
		Details:    details,
		Timestamp:  time.Now().UTC(),
	})
}

func (s *PropertyService) changed() {
	s.mu.Lock()
	listeners := append([]func(){}, s.listeners...)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn()
	}
}

// toNode converts p into the map written to the store. The id lives in the
// key, and timestamps are assigned by the store.
func toNode(p models.Property) (map[string]interface{}, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode property: %w", err)
	}
	var node map[string]interface{}
	if err := json.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("encode property: %w", err)
	}
	delete(node, "id")
	delete(node, "createdAt")
	delete(node, "updatedAt")
	return node, nil
}

func recordPath(id string) string {
	return propertiesPath + "/" + id
}

// validKey rejects ids the store could not hold as a single child key.
func validKey(id string) bool {
	return id != "" && !strings.ContainsAny(id, "/.#$[]")
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func isUnavailable(err error) bool {
	return errors.Is(err, storage.ErrUnavailable)
}
