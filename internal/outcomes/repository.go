package outcomes

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/JaimeStill/postmottak/pkg/pagination"
	"github.com/JaimeStill/postmottak/pkg/query"
	"github.com/JaimeStill/postmottak/pkg/repository"
)

var dbErrors = repository.Errors{
	NotFound:  ErrNotFound,
	Duplicate: ErrDuplicate,
	Invalid:   ErrInvalidStatus,
}

type repo struct {
	db         *sql.DB
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates the Postgres backed outcome ledger.
func New(db *sql.DB, logger *slog.Logger, pagination pagination.Config) System {
	return &repo{
		db:         db,
		logger:     logger.With("system", "outcomes"),
		pagination: pagination,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Outcome], error) {
	page.Normalize(r.pagination)

	qb := filters.Apply(
		query.NewBuilder(projection, defaultSort).
			WhereSearch(page.Search, "Subject", "Sender", "Detail").
			OrderBy(page.Sort),
	)

	countSQL, countArgs := qb.BuildCount()
	total, err := repository.Scalar[int](ctx, r.db, countSQL, countArgs)
	if err != nil {
		return nil, fmt.Errorf("count outcomes: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.PageSize, page.Offset())
	items, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanOutcome)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}

	result := pagination.NewPageResult(items, total, page)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Outcome, error) {
	return r.single(ctx, "ID", id)
}

func (r *repo) FindByMessage(ctx context.Context, messageID string) (*Outcome, error) {
	return r.single(ctx, "MessageID", messageID)
}

func (r *repo) single(ctx context.Context, field string, value any) (*Outcome, error) {
	q, args := query.NewBuilder(projection).BuildSingle(field, value)

	o, err := repository.QueryOne(ctx, r.db, q, args, scanOutcome)
	if err != nil {
		return nil, repository.MapError(err, dbErrors)
	}
	return &o, nil
}

// Record upserts the outcome of a message. A message has one outcome row; a
// later outcome for the same message replaces the earlier one.
func (r *repo) Record(ctx context.Context, cmd RecordCommand) (*Outcome, error) {
	if !validStatus(cmd.Status) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, cmd.Status)
	}

	upsertQ := `
		INSERT INTO outcomes(
			message_id, email_type, status, subject, sender,
			case_number, document_number, run_count, detail
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (message_id) DO UPDATE SET
			email_type = EXCLUDED.email_type,
			status = EXCLUDED.status,
			subject = EXCLUDED.subject,
			sender = EXCLUDED.sender,
			case_number = EXCLUDED.case_number,
			document_number = EXCLUDED.document_number,
			run_count = EXCLUDED.run_count,
			detail = EXCLUDED.detail,
			recorded_at = NOW()
		RETURNING id, message_id, email_type, status, subject, sender,
				  case_number, document_number, run_count, detail, recorded_at`

	args := []any{
		cmd.MessageID,
		nullable(cmd.EmailType),
		cmd.Status,
		cmd.Subject,
		cmd.Sender,
		nullable(cmd.CaseNumber),
		nullable(cmd.DocumentNumber),
		cmd.RunCount,
		cmd.Detail,
	}

	o, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Outcome, error) {
		return repository.QueryOne(ctx, tx, upsertQ, args, scanOutcome)
	})
	if err != nil {
		return nil, repository.MapError(err, dbErrors)
	}

	r.logger.Info("outcome recorded",
		"id", o.ID,
		"message_id", o.MessageID,
		"status", o.Status,
	)
	return &o, nil
}

// Seen reports whether messageID already has an outcome of any status.
func (r *repo) Seen(ctx context.Context, messageID string) (bool, error) {
	q, args := query.NewBuilder(projection).WhereEquals("MessageID", messageID).BuildExists()
	seen, err := repository.Scalar[bool](ctx, r.db, q, args)
	if err != nil {
		return false, fmt.Errorf("check outcome: %w", err)
	}
	return seen, nil
}
