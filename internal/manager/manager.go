// Package manager tracks the set of running pipelines, generalizing
// alxayo's Registry (internal/rtmp/server/registry.go) from a
// mutex-guarded map keyed by stream key to a lock-free concurrent map
// (github.com/puzpuzpuz/xsync/v3) keyed by pipeline UUID, since the
// manager is read far more often (pop_frame polling) than written
// (open/close).
package manager

import (
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"

	"framepipe/internal/config"
	"framepipe/internal/pipeline"
)

// ErrNotFound is returned when a pipeline ID has no registered pipeline.
var ErrNotFound = errors.New("framepipe: no pipeline with that id")

// Manager owns the lifetime of every pipeline opened through it.
type Manager struct {
	log        *slog.Logger
	defaultCfg config.Config
	pipelines  *xsync.MapOf[uuid.UUID, *pipeline.Pipeline]
}

// New builds an empty manager using defaultCfg for pipelines opened
// without an explicit config.
func New(log *slog.Logger, defaultCfg config.Config) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		log:        log,
		defaultCfg: defaultCfg,
		pipelines:  xsync.NewMapOf[uuid.UUID, *pipeline.Pipeline](),
	}
}

// Open allocates a new pipeline and registers it under its own ID.
func (m *Manager) Open() *pipeline.Pipeline {
	p := pipeline.New(m.log, m.defaultCfg)
	m.pipelines.Store(p.ID, p)
	return p
}

// OpenWithConfig allocates a new pipeline with a specific config.
func (m *Manager) OpenWithConfig(cfg config.Config) *pipeline.Pipeline {
	p := pipeline.New(m.log, cfg)
	m.pipelines.Store(p.ID, p)
	return p
}

// Get returns the pipeline registered under id, or ErrNotFound.
func (m *Manager) Get(id uuid.UUID) (*pipeline.Pipeline, error) {
	p, ok := m.pipelines.Load(id)
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

// Close frees the pipeline registered under id and removes it.
func (m *Manager) Close(id uuid.UUID) error {
	p, ok := m.pipelines.LoadAndDelete(id)
	if !ok {
		return ErrNotFound
	}
	p.Free()
	return nil
}

// CloseAll frees every registered pipeline, for process shutdown.
func (m *Manager) CloseAll() {
	m.pipelines.Range(func(id uuid.UUID, p *pipeline.Pipeline) bool {
		p.Free()
		m.pipelines.Delete(id)
		return true
	})
}

// Len reports the number of currently registered pipelines.
func (m *Manager) Len() int {
	return m.pipelines.Size()
}
