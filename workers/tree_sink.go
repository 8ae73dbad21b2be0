package workers

import (
	"context"

	"realtors/models"
	"realtors/storage"
)

const adminLogsPath = "adminLogs"

// TreeAuditSink appends audit entries under the adminLogs node of the tree
// store, next to the records they describe.
type TreeAuditSink struct {
	tree storage.TreeStore
}

func NewTreeAuditSink(tree storage.TreeStore) *TreeAuditSink {
	return &TreeAuditSink{tree: tree}
}

func (s *TreeAuditSink) WriteAudit(ctx context.Context, entry models.AuditEntry) error {
	node := map[string]interface{}{
		"action":     entry.Action,
		"propertyId": entry.PropertyID,
		"actor":      entry.Actor,
		"timestamp":  storage.ServerTimestamp(),
	}
	if len(entry.Details) > 0 {
		node["details"] = entry.Details
	}
	_, err := s.tree.Push(ctx, adminLogsPath, node)
	return err
}
