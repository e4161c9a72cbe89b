package emailtypes

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/JaimeStill/postmottak/internal/assistant"
	"github.com/JaimeStill/postmottak/pkg/archive"
	"github.com/JaimeStill/postmottak/pkg/mail"
	"github.com/JaimeStill/postmottak/pkg/metrics"
)

// Deps are the collaborators injected into every handler.
type Deps struct {
	Mail      mail.Transport
	Archive   archive.Service
	Assistant assistant.Requester
	Metrics   *metrics.Recorder
	Logger    *slog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Factory builds handlers by type name. Every Create returns a fresh handler so
// a resumed flow never shares state with a classification in the same cycle.
type Factory struct {
	cfg          Config
	deps         Deps
	constructors map[string]func() Handler
}

func NewFactory(cfg Config, deps Deps) *Factory {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	f := &Factory{cfg: cfg, deps: deps}
	logger := deps.Logger.With("system", "emailtypes")

	f.constructors = map[string]func() Handler{
		TypeRf1350: func() Handler {
			h := NewRf1350(cfg.Rf1350, cfg.EpostInnCategory, deps.Archive, deps.Mail, deps.Assistant, deps.Metrics, logger)
			h.now = deps.Now
			return h
		},
		TypeLoyvegaranti: func() Handler {
			h := NewLoyvegaranti(cfg.Loyvegaranti, cfg.EpostInnCategory, deps.Archive, deps.Mail, deps.Assistant, deps.Metrics, logger)
			h.now = deps.Now
			return h
		},
		TypePengetransporten: func() Handler {
			return NewPengetransporten(cfg.Pengetransporten, cfg.IntakeAddress, deps.Mail, deps.Assistant, deps.Metrics, logger)
		},
		TypeInnsyn: func() Handler {
			return NewInnsyn(cfg.Innsyn, deps.Mail, deps.Assistant, deps.Metrics, logger)
		},
		TypeCaseNumber: func() Handler {
			h := NewCaseNumber(cfg.CaseNumber, cfg.EpostInnCategory, cfg.IntakeAddress, deps.Archive, deps.Mail, deps.Assistant, deps.Metrics, logger)
			h.now = deps.Now
			return h
		},
	}
	return f
}

// Create returns a new handler for name regardless of whether it is enabled,
// so flows persisted before a type was disabled can still finish.
func (f *Factory) Create(name string) (Handler, error) {
	ctor, ok := f.constructors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, name)
	}
	return ctor(), nil
}

// Handlers returns the enabled handlers in the configured order.
func (f *Factory) Handlers() []Handler {
	order := f.cfg.Order
	if len(order) == 0 {
		order = DefaultOrder
	}

	handlers := make([]Handler, 0, len(order))
	for _, name := range order {
		h, err := f.Create(name)
		if err != nil {
			f.deps.Logger.Warn("skipping unknown email type", "type", name)
			continue
		}
		if h.Enabled() {
			handlers = append(handlers, h)
		}
	}
	return handlers
}
