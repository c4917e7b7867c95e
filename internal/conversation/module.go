// Package conversation is the safety-reporting conversation bounded context.
// This file wires the state repository, step handlers, and dispatcher.
package conversation

import (
	"safetyreport_backend/internal/ai"
	"safetyreport_backend/internal/conversation/engine"
	"safetyreport_backend/internal/conversation/repository"
	"safetyreport_backend/internal/reports"
	"safetyreport_backend/platform/config"
	"safetyreport_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module bundles the conversation engine with its persistence.
type Module struct {
	Dispatcher *engine.Dispatcher
	States     *repository.Repository
}

// Deps are the external collaborators the engine depends on.
type Deps struct {
	Images    engine.ImageSaver
	Taxonomy  engine.SnapshotProvider
	Vision    ai.VisionClassifier
	Mapper    ai.TextMapper
	Retriever ai.Retriever
	Advisor   ai.AdviceGenerator
	Notifier  engine.Notifier
}

// NewModule creates and initializes the conversation module.
func NewModule(pool *pgxpool.Pool, reportStore *reports.Repository, deps Deps, cfg config.EngineConfig, log *logger.Logger) *Module {
	states := repository.New(pool)

	start := engine.NewStartHandler(deps.Images, deps.Taxonomy, deps.Vision, log)
	steps := engine.NewLocationClassificationHandler(deps.Mapper, deps.Taxonomy, log)
	severity := engine.NewSeverityAdviceHandler(deps.Retriever, deps.Advisor, log)
	finalize := engine.NewFinalizationHandler(reportStore, log)

	dispatcher := engine.NewDispatcher(states, deps.Notifier, start, steps, severity, finalize, cfg.GetConversationTTL(), log)

	return &Module{
		Dispatcher: dispatcher,
		States:     states,
	}
}
