package api

import (
	"github.com/JaimeStill/postmottak/internal/config"
	"github.com/JaimeStill/postmottak/internal/emailtypes"
	"github.com/JaimeStill/postmottak/internal/flowstatus"
	"github.com/JaimeStill/postmottak/internal/orchestrator"
	"github.com/JaimeStill/postmottak/internal/outcomes"
	"github.com/JaimeStill/postmottak/internal/statistics"
)

// Domain holds all domain systems that comprise the API.
type Domain struct {
	Outcomes     outcomes.System
	Flows        *flowstatus.Store
	Factory      *emailtypes.Factory
	Registry     *emailtypes.Registry
	Orchestrator *orchestrator.Orchestrator
}

// NewDomain creates all domain systems from the API runtime.
func NewDomain(cfg *config.Config, runtime *Runtime) *Domain {
	outcomesSystem := outcomes.New(
		runtime.Database.Connection(),
		runtime.Logger,
		runtime.Pagination,
	)

	flows := flowstatus.NewStore(
		runtime.Storage,
		flowstatus.Namespaces{
			InProgress: cfg.Postmottak.InProgressPrefix,
			Failed:     cfg.Postmottak.FailedPrefix,
		},
		runtime.Logger,
	)

	factory := emailtypes.NewFactory(cfg.EmailTypes, emailtypes.Deps{
		Mail:      runtime.Mail,
		Archive:   runtime.Archive,
		Assistant: runtime.Assistant,
		Metrics:   runtime.Metrics,
		Logger:    runtime.Logger,
	})

	registry := emailtypes.NewRegistry(
		factory.Handlers(),
		runtime.Mail,
		emailtypes.Folders{
			RobotLog:     cfg.Postmottak.RobotLogFolder,
			PartialMatch: cfg.Postmottak.PartialMatchFolder,
		},
		runtime.Metrics,
		runtime.Logger,
	)

	orch := orchestrator.New(cfg.Postmottak, orchestrator.Deps{
		Transport:  runtime.Mail,
		Classifier: registry,
		Factory:    factory,
		Flows:      flows,
		Ledger:     outcomesSystem,
		Statistics: statistics.New(cfg.Statistics, runtime.Logger),
		Assistant:  runtime.Assistant,
		Metrics:    runtime.Metrics,
		Logger:     runtime.Logger,
	})

	return &Domain{
		Outcomes:     outcomesSystem,
		Flows:        flows,
		Factory:      factory,
		Registry:     registry,
		Orchestrator: orch,
	}
}
