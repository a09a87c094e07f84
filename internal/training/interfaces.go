package training

import (
	"context"
	"time"

	"github.com/jkaninda/mlinzi/internal/audit"
)

// ProposalStore is the persistence contract for proposal records.
// Implementations must enforce the state machine:
//   - Pending -> Approved
//   - Pending -> Denied
//   - Pending -> Expired
//
// Once Approved/Denied/Expired, status is immutable.
type ProposalStore interface {
	// Create persists a new pending proposal built from a blocked trigger
	// and returns its ID.
	Create(ctx context.Context, bt *audit.BlockedTrigger, kind Kind, ttl time.Duration) (id string, err error)
	// Get retrieves a proposal by ID, marking it expired if past ExpiresAt.
	Get(ctx context.Context, id string) (*Proposal, error)
	// List returns proposals with the given status, newest first.
	List(ctx context.Context, status Status, limit int) ([]Proposal, error)
	// Approve transitions a pending proposal to StatusApproved.
	Approve(ctx context.Context, id, approverID string) error
	// Deny transitions a pending proposal to StatusDenied.
	Deny(ctx context.Context, id, denierID string) error
	// ExpireOld bulk-updates status to expired for all pending rows where expires_at < now().
	ExpireOld(ctx context.Context) error
	// DeleteResolved removes resolved/expired rows older than the given age.
	DeleteResolved(ctx context.Context, olderThan time.Duration) error
}
