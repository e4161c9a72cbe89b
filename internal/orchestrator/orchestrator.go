// Package orchestrator runs the archiving cycle: it resumes persisted flows,
// classifies new inbox messages, runs their handlers, and files each message
// according to the outcome.
package orchestrator

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/JaimeStill/postmottak/internal/assistant"
	"github.com/JaimeStill/postmottak/internal/emailtypes"
	"github.com/JaimeStill/postmottak/internal/flowstatus"
	"github.com/JaimeStill/postmottak/internal/outcomes"
	"github.com/JaimeStill/postmottak/internal/statistics"
	"github.com/JaimeStill/postmottak/pkg/formatting"
	"github.com/JaimeStill/postmottak/pkg/mail"
	"github.com/JaimeStill/postmottak/pkg/metrics"
	"github.com/JaimeStill/postmottak/pkg/telemetry"
)

// ErrCycleRunning is returned by Run while another cycle holds the lock.
var ErrCycleRunning = errors.New("archive cycle already running")

// Status of a message the cycle ran a handler for.
const (
	StatusSucceeded   = "succeeded"
	StatusRetry       = "retry"
	StatusEscalated   = "escalated"
	StatusInterrupted = "interrupted"
)

// settleTimeout bounds the filing and persistence that follow a handler run.
// That work runs detached from the cycle context so state a handler already
// recorded survives a cancelled cycle.
const settleTimeout = 30 * time.Second

func settle(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
}

// Classifier picks the handler for a new message.
type Classifier interface {
	Classify(ctx context.Context, msg *mail.Message) (*emailtypes.Classification, error)
}

// HandlerFactory rebuilds a handler from the type name stored in a flow.
type HandlerFactory interface {
	Create(name string) (emailtypes.Handler, error)
}

// Ledger records terminal outcomes. Seen keeps unmatched messages left in the
// inbox from being classified again.
type Ledger interface {
	Record(ctx context.Context, cmd outcomes.RecordCommand) (*outcomes.Outcome, error)
	Seen(ctx context.Context, messageID string) (bool, error)
}

// Deps are the collaborators of an Orchestrator. Ledger, Statistics and
// Assistant are optional.
type Deps struct {
	Transport  mail.Transport
	Classifier Classifier
	Factory    HandlerFactory
	Flows      *flowstatus.Store
	Ledger     Ledger
	Statistics statistics.Reporter
	Assistant  assistant.Requester
	Metrics    *metrics.Recorder
	Logger     *slog.Logger
	Now        func() time.Time
}

// HandledMessage is a message a handler ran for during a cycle.
type HandledMessage struct {
	MessageID string `json:"messageId"`
	Type      string `json:"type"`
	Status    string `json:"status"`
}

// Summary reports what one cycle did.
type Summary struct {
	RunID               uuid.UUID        `json:"runId"`
	HandledMessages     []HandledMessage `json:"handledMessages"`
	UnhandledMessageIDs []string         `json:"unhandledMessageIds"`
	DeferredMessageIDs  []string         `json:"deferredMessageIds"`
}

func (s *Summary) handled(flow *flowstatus.FlowStatus, status string) {
	s.HandledMessages = append(s.HandledMessages, HandledMessage{
		MessageID: flow.Message.ID,
		Type:      flow.Type,
		Status:    status,
	})
}

// Orchestrator is the single writer of flows and of mailbox folder moves.
type Orchestrator struct {
	cfg  Config
	deps Deps

	mu     sync.Mutex
	tracer trace.Tracer
	logger *slog.Logger
}

func New(cfg Config, deps Deps) *Orchestrator {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Orchestrator{
		cfg:    cfg,
		deps:   deps,
		tracer: telemetry.Tracer(),
		logger: deps.Logger.With("system", "orchestrator"),
	}
}

// Run executes one archiving cycle. Messages are processed one at a time in
// ascending received order. It returns ErrCycleRunning without doing anything
// when a cycle is already in progress.
func (o *Orchestrator) Run(ctx context.Context) (*Summary, error) {
	if !o.mu.TryLock() {
		return nil, ErrCycleRunning
	}
	defer o.mu.Unlock()

	start := o.deps.Now()
	summary := &Summary{
		RunID:               uuid.New(),
		HandledMessages:     []HandledMessage{},
		UnhandledMessageIDs: []string{},
		DeferredMessageIDs:  []string{},
	}
	logger := o.logger.With("run_id", summary.RunID.String())

	ctx, span := o.tracer.Start(ctx, "orchestrator.cycle",
		trace.WithAttributes(attribute.String("run_id", summary.RunID.String())),
	)
	defer span.End()
	defer func() { o.deps.Metrics.ObserveCycle(o.deps.Now().Sub(start)) }()

	persisted, err := o.deps.Flows.LoadInProgress(ctx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	msgs, err := o.deps.Transport.ListMessages(ctx, o.cfg.InboxFolder, mail.ListOptions{
		ReceivedBefore: start,
		Top:            o.cfg.PageSize,
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("list inbox: %w", err)
	}
	slices.SortStableFunc(msgs, func(a, b mail.Message) int {
		return a.ReceivedAt.Compare(b.ReceivedAt)
	})

	logger.InfoContext(ctx, "cycle started", "messages", len(msgs), "persisted_flows", len(persisted))

	for i := range msgs {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		o.process(ctx, logger, &msgs[i], persisted, summary)
	}
	if err := ctx.Err(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		logger.WarnContext(ctx, "cycle interrupted", "handled", len(summary.HandledMessages), "error", err)
		return summary, err
	}

	span.SetAttributes(
		attribute.Int("handled", len(summary.HandledMessages)),
		attribute.Int("unhandled", len(summary.UnhandledMessageIDs)),
	)
	logger.InfoContext(ctx, "cycle complete",
		"handled", len(summary.HandledMessages),
		"unhandled", len(summary.UnhandledMessageIDs),
		"deferred", len(summary.DeferredMessageIDs),
		"duration", o.deps.Now().Sub(start).String(),
	)
	return summary, nil
}

func (o *Orchestrator) process(
	ctx context.Context,
	logger *slog.Logger,
	msg *mail.Message,
	persisted map[string]*flowstatus.FlowStatus,
	summary *Summary,
) {
	logger = logger.With("message_id", msg.ID)

	if flow, ok := persisted[msg.ID]; ok {
		if !flow.Due(o.deps.Now()) {
			logger.DebugContext(ctx, "flow not due", "type", flow.Type, "retry_after", flow.RetryAfter)
			summary.DeferredMessageIDs = append(summary.DeferredMessageIDs, msg.ID)
			return
		}

		h, err := o.deps.Factory.Create(flow.Type)
		if err != nil {
			logger.ErrorContext(ctx, "persisted flow has no handler", "type", flow.Type, "error", err)
			flow.Escalate()
			sctx, cancel := settle(ctx)
			defer cancel()
			summary.handled(flow, o.fail(sctx, logger, flow.Type, flow, err))
			return
		}

		logger.InfoContext(ctx, "resuming flow", "type", flow.Type, "run_count", flow.RunCount)
		summary.handled(flow, o.run(ctx, logger, h, flow))
		return
	}

	if o.deps.Ledger != nil {
		seen, err := o.deps.Ledger.Seen(ctx, msg.ID)
		if err != nil {
			logger.WarnContext(ctx, "outcome lookup failed", "error", err)
		} else if seen {
			summary.UnhandledMessageIDs = append(summary.UnhandledMessageIDs, msg.ID)
			return
		}
	}

	cctx, span := o.tracer.Start(ctx, "orchestrator.classify",
		trace.WithAttributes(attribute.String("message_id", msg.ID)),
	)
	c, err := o.deps.Classifier.Classify(cctx, msg)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.End()
		logger.ErrorContext(ctx, "classification failed", "error", err)
		summary.UnhandledMessageIDs = append(summary.UnhandledMessageIDs, msg.ID)
		return
	}
	span.End()

	if !c.Matched() {
		summary.UnhandledMessageIDs = append(summary.UnhandledMessageIDs, msg.ID)
		o.recordUnmatched(ctx, msg, c)
		return
	}

	flow := flowstatus.New(c.Handler.Type(), *msg, c.Match.Result)
	logger.InfoContext(ctx, "message classified", "type", flow.Type)
	summary.handled(flow, o.run(ctx, logger, c.Handler, flow))
}

// run handles flow and files the message. A flow that already succeeded in an
// earlier cycle only gets filed.
func (o *Orchestrator) run(ctx context.Context, logger *slog.Logger, h emailtypes.Handler, flow *flowstatus.FlowStatus) string {
	ctx, span := o.tracer.Start(ctx, "orchestrator.handle", trace.WithAttributes(
		attribute.String("message_id", flow.Message.ID),
		attribute.String("email_type", flow.Type),
		attribute.Int("run_count", flow.RunCount),
	))
	defer span.End()

	logger = logger.With("type", flow.Type)

	if flow.SendToArkivarerForHandling && flow.RunCount > 0 {
		sctx, cancel := settle(ctx)
		defer cancel()
		if o.escalate(sctx, logger, h.Title(), flow) {
			return StatusEscalated
		}
		return StatusRetry
	}

	if !flow.Handled() {
		text, err := h.HandleMessage(ctx, flow)
		if err != nil {
			span.RecordError(err)
			sctx, cancel := settle(ctx)
			defer cancel()
			if ctx.Err() != nil {
				return o.interrupt(sctx, logger, flow, err)
			}
			return o.fail(sctx, logger, h.Title(), flow, err)
		}
		flow.Finish(text, o.deps.Now())
	}

	sctx, cancel := settle(ctx)
	defer cancel()
	if err := o.succeed(sctx, logger, h, flow); err != nil {
		span.RecordError(err)
		logger.ErrorContext(sctx, "filing handled message failed", "error", err)
		return o.fail(sctx, logger, h.Title(), flow, err)
	}
	return StatusSucceeded
}

// interrupt persists a flow whose handler stopped because the cycle was
// cancelled. The attempt does not count against the retry schedule.
func (o *Orchestrator) interrupt(ctx context.Context, logger *slog.Logger, flow *flowstatus.FlowStatus, cause error) string {
	if err := o.deps.Flows.SaveInProgress(ctx, flow); err != nil {
		logger.ErrorContext(ctx, "save interrupted flow failed", "error", err)
	}
	logger.WarnContext(ctx, "handler interrupted, flow saved for the next cycle",
		"case_number", flow.Archive.CaseNumber,
		"document_number", flow.Archive.DocumentNumber,
		"error", cause,
	)
	return StatusInterrupted
}

func (o *Orchestrator) succeed(ctx context.Context, logger *slog.Logger, h emailtypes.Handler, flow *flowstatus.FlowStatus) error {
	banner := o.successBanner(ctx, logger, h, flow)

	id, err := o.patchBanner(ctx, logger, flow, banner)
	if err != nil {
		return fmt.Errorf("add audit banner: %w", err)
	}
	if _, err := o.deps.Transport.Move(ctx, id, o.cfg.FinishedFolder); err != nil {
		return fmt.Errorf("move to finished folder: %w", err)
	}

	if err := o.deps.Flows.DeleteInProgress(ctx, flow); err != nil {
		logger.WarnContext(ctx, "delete in-progress flow failed", "error", err)
	}

	if o.deps.Statistics != nil {
		o.deps.Statistics.Report(ctx, statistics.Event{
			Description: h.Title(),
			MessageID:   flow.Message.ID,
			Type:        flow.Type,
			Sender:      mail.SenderAddress(&flow.Message),
		})
	}

	o.record(ctx, logger, flow, outcomes.StatusSucceeded, flow.ResultText)
	o.deps.Metrics.FlowOutcome(flow.Type, StatusSucceeded)
	logger.InfoContext(ctx, "message handled",
		"case_number", flow.Archive.CaseNumber,
		"document_number", flow.Archive.DocumentNumber,
		"run_count", flow.RunCount,
	)
	return nil
}

// fail records cause on flow and either schedules a retry or escalates.
func (o *Orchestrator) fail(ctx context.Context, logger *slog.Logger, title string, flow *flowstatus.FlowStatus, cause error) string {
	decision := flow.RecordFailure(cause, o.cfg.RetryIntervals, o.deps.Now())

	if decision == flowstatus.Retry {
		if err := o.deps.Flows.SaveInProgress(ctx, flow); err != nil {
			logger.ErrorContext(ctx, "save in-progress flow failed", "error", err)
		}
		o.deps.Metrics.FlowOutcome(flow.Type, StatusRetry)
		logger.WarnContext(ctx, "handler failed, retry scheduled",
			"run_count", flow.RunCount,
			"retry_after", flow.RetryAfter,
			"error", cause,
		)
		return StatusRetry
	}

	if o.escalate(ctx, logger, title, flow) {
		return StatusEscalated
	}
	return StatusRetry
}

// escalate files the message in the manual folder and moves its flow to the
// failed namespace. When the move fails the flow stays in progress with the
// escalation flag set and the next cycle tries again.
func (o *Orchestrator) escalate(ctx context.Context, logger *slog.Logger, title string, flow *flowstatus.FlowStatus) bool {
	flow.Escalate()

	banner := formatting.HTMLBox(fmt.Sprintf(
		"Robåten klarte ikke å håndtere denne e-posten, og den er flyttet til manuell behandling.<br /><br />"+
			"<b>E-posttype</b>: %s<br /><b>Antall forsøk</b>: %d<br /><b>Feilmelding</b>: %s",
		html.EscapeString(title), flow.RunCount, html.EscapeString(flow.ErrorMessage),
	))

	id, err := o.patchBanner(ctx, logger, flow, banner)
	if err != nil {
		logger.WarnContext(ctx, "add escalation banner failed", "error", err)
		id = flow.Message.ID
	}

	if _, err := o.deps.Transport.Move(ctx, id, o.cfg.ManualFolder); err != nil {
		logger.ErrorContext(ctx, "move to manual folder failed", "error", err)
		if err := o.deps.Flows.SaveInProgress(ctx, flow); err != nil {
			logger.ErrorContext(ctx, "save in-progress flow failed", "error", err)
		}
		return false
	}

	if err := o.deps.Flows.SaveFailed(ctx, flow); err != nil {
		logger.ErrorContext(ctx, "save failed flow failed", "error", err)
	}
	if err := o.deps.Flows.DeleteInProgress(ctx, flow); err != nil {
		logger.WarnContext(ctx, "delete in-progress flow failed", "error", err)
	}

	o.record(ctx, logger, flow, outcomes.StatusEscalated, flow.ErrorMessage)
	o.deps.Metrics.FlowOutcome(flow.Type, StatusEscalated)
	logger.WarnContext(ctx, "message escalated to manual handling",
		"run_count", flow.RunCount,
		"error_message", flow.ErrorMessage,
	)
	return true
}

// patchBanner prepends banner to the original body of the message. Some
// transports give the message a new id when its body changes; the flow follows
// the new id and its in-progress copy under the old id is removed.
func (o *Orchestrator) patchBanner(ctx context.Context, logger *slog.Logger, flow *flowstatus.FlowStatus, banner string) (string, error) {
	id, err := o.deps.Transport.UpdateBody(ctx, flow.Message.ID, mail.WithBannerHTML(banner, flow.Message.Body))
	if err != nil {
		return "", err
	}
	if id != "" && id != flow.Message.ID {
		if err := o.deps.Flows.DeleteInProgress(ctx, flow); err != nil {
			logger.WarnContext(ctx, "delete in-progress flow under previous id failed", "error", err)
		}
		flow.Message.ID = id
	}
	return flow.Message.ID, nil
}

func (o *Orchestrator) successBanner(ctx context.Context, logger *slog.Logger, h emailtypes.Handler, flow *flowstatus.FlowStatus) string {
	var b strings.Builder
	b.WriteString(flow.ResultText)

	if h.IncludeFunFact() && o.deps.Assistant != nil {
		fact, err := assistant.FunFact(ctx, o.deps.Assistant)
		if err != nil {
			logger.WarnContext(ctx, "fun fact failed", "error", err)
		} else if fact != "" {
			fmt.Fprintf(&b, "<br /><br /><b>Fun fact</b>: %s", html.EscapeString(fact))
		}
	}

	fmt.Fprintf(&b, "<br /><br /><b>E-posttype</b>: %s", html.EscapeString(h.Title()))
	return formatting.HTMLBox(b.String())
}

func (o *Orchestrator) recordUnmatched(ctx context.Context, msg *mail.Message, c *emailtypes.Classification) {
	status := outcomes.StatusUnmatched
	if c.PartialMatch {
		status = outcomes.StatusPartial
	}
	detail := c.Diagnostics
	if c.Skipped {
		detail = "empty subject or body"
	}

	if o.deps.Ledger == nil {
		return
	}
	if _, err := o.deps.Ledger.Record(ctx, outcomes.RecordCommand{
		MessageID: msg.ID,
		Status:    status,
		Subject:   msg.Subject,
		Sender:    mail.SenderAddress(msg),
		Detail:    detail,
	}); err != nil {
		o.logger.WarnContext(ctx, "record outcome failed", "message_id", msg.ID, "error", err)
	}
}

func (o *Orchestrator) record(ctx context.Context, logger *slog.Logger, flow *flowstatus.FlowStatus, status, detail string) {
	if o.deps.Ledger == nil {
		return
	}
	if _, err := o.deps.Ledger.Record(ctx, outcomes.RecordCommand{
		MessageID:      flow.Message.ID,
		EmailType:      flow.Type,
		Status:         status,
		Subject:        flow.Message.Subject,
		Sender:         mail.SenderAddress(&flow.Message),
		CaseNumber:     flow.Archive.CaseNumber,
		DocumentNumber: flow.Archive.DocumentNumber,
		RunCount:       flow.RunCount,
		Detail:         cmp.Or(detail, status),
	}); err != nil {
		logger.WarnContext(ctx, "record outcome failed", "error", err)
	}
}
