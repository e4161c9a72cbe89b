package outcomes

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/postmottak/pkg/pagination"
)

// System defines the outcome ledger.
type System interface {
	Handler() *Handler

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Outcome], error)

	Find(ctx context.Context, id uuid.UUID) (*Outcome, error)
	FindByMessage(ctx context.Context, messageID string) (*Outcome, error)
	Record(ctx context.Context, cmd RecordCommand) (*Outcome, error)
	// Seen reports whether any outcome is recorded for messageID.
	Seen(ctx context.Context, messageID string) (bool, error)
}
