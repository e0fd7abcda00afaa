package syncx

import (
	"github.com/vibevault/vibevault/internal/models"
)

// MergeResult counts what ingesting a bundle did to the store.
type MergeResult struct {
	Inserted int
	Updated  int
	Skipped  int
}

// Applied is the number of rows written.
func (m MergeResult) Applied() int { return m.Inserted + m.Updated }

// inboundWins implements the per-entry last-writer-wins rule. Both ends
// must apply it identically:
//
//  1. higher sync_version wins;
//  2. on a version tie, the later updated_at wins (ISO-8601 strings
//     compare lexicographically);
//  3. still tied, entry_uuid byte order decides. Both rows carry the
//     same uuid, so that comparison is always equal and the incumbent
//     row stays on both ends.
//
// The rule is commutative and idempotent: re-applying an envelope, or
// applying two envelopes in either order, converges to the same state.
func inboundWins(inbound *models.Entry, local *models.Entry) bool {
	if inbound.SyncVersion != local.SyncVersion {
		return inbound.SyncVersion > local.SyncVersion
	}
	if inbound.UpdatedAt != local.UpdatedAt {
		return inbound.UpdatedAt > local.UpdatedAt
	}
	return false
}
