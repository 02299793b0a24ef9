package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gilchrisn/connectome-service/backend/metrics"
	"github.com/gilchrisn/connectome-service/backend/models"
	"github.com/gilchrisn/connectome-service/pkg/brain"
	"github.com/gilchrisn/connectome-service/pkg/dataset"
	"github.com/gilchrisn/connectome-service/pkg/degeneration"
	"github.com/gilchrisn/connectome-service/pkg/hubs"
	"github.com/gilchrisn/connectome-service/pkg/louvain"
	"github.com/gilchrisn/connectome-service/pkg/threshold"
)

// ErrSessionLimit is returned when the service already holds its maximum
// number of sessions.
var ErrSessionLimit = errors.New("session limit reached")

// session guards one brain. Analyses mutate the brain, so every operation
// holds mu for its whole duration.
type session struct {
	mu    sync.Mutex
	brain *brain.Brain
	meta  models.Session
}

// SessionService keeps analysis sessions in memory.
type SessionService struct {
	sessions map[string]*session
	mutex    sync.RWMutex
	max      int
	maxNodes int
	metrics  *metrics.Registry
}

func NewSessionService(maxSessions, maxNodes int, reg *metrics.Registry) *SessionService {
	return &SessionService{
		sessions: make(map[string]*session),
		max:      maxSessions,
		maxNodes: maxNodes,
		metrics:  reg,
	}
}

// Create loads a dataset document into a new session.
func (s *SessionService) Create(name string, doc *dataset.Document) (*models.Session, error) {
	if len(doc.Matrix) > s.maxNodes {
		return nil, fmt.Errorf("matrix has %d rows, limit is %d: %w", len(doc.Matrix), s.maxNodes, brain.ErrInput)
	}
	b, err := doc.ToBrain()
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = "Unnamed Session"
	}
	return s.add(name, b)
}

func (s *SessionService) add(name string, b *brain.Brain) (*models.Session, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if len(s.sessions) >= s.max {
		return nil, fmt.Errorf("%d sessions held: %w", len(s.sessions), ErrSessionLimit)
	}
	now := time.Now()
	sess := &session{
		brain: b,
		meta: models.Session{
			ID:        uuid.New().String(),
			Name:      name,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
	refresh(sess)
	s.sessions[sess.meta.ID] = sess
	s.metrics.SessionsActive.Set(float64(len(s.sessions)))

	log.Info().
		Str("session_id", sess.meta.ID).
		Str("name", name).
		Int("nodes", sess.meta.Nodes).
		Msg("Session created")

	meta := sess.meta
	return &meta, nil
}

// List returns all sessions, oldest first.
func (s *SessionService) List() []models.Session {
	s.mutex.RLock()
	all := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		all = append(all, sess)
	}
	s.mutex.RUnlock()

	out := make([]models.Session, 0, len(all))
	for _, sess := range all {
		sess.mu.Lock()
		out = append(out, sess.meta)
		sess.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (s *SessionService) Count() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.sessions)
}

func (s *SessionService) Get(id string) (*models.Session, error) {
	var meta models.Session
	err := s.with(id, func(sess *session) error {
		meta = sess.meta
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &meta, nil
}

func (s *SessionService) Delete(id string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return fmt.Errorf("session %s: %w", id, brain.ErrNotFound)
	}
	delete(s.sessions, id)
	s.metrics.SessionsActive.Set(float64(len(s.sessions)))
	log.Info().Str("session_id", id).Msg("Session deleted")
	return nil
}

// Clone copies a session's brain into a new, independent session.
func (s *SessionService) Clone(id, name string) (*models.Session, error) {
	var (
		b      *brain.Brain
		source string
	)
	err := s.with(id, func(sess *session) error {
		b = sess.brain.Clone()
		source = sess.meta.Name
		return nil
	})
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = source + " (copy)"
	}
	return s.add(name, b)
}

// Threshold rebuilds the session graph from its matrix.
func (s *SessionService) Threshold(ctx context.Context, id string, req threshold.Request) (*threshold.Result, error) {
	var res *threshold.Result
	err := s.operate(id, "threshold", func(sess *session) (err error) {
		res, err = threshold.NewEngine(log.Logger).Apply(ctx, sess.brain, req)
		return err
	})
	return res, err
}

// Modules detects communities and records them on the session's nodes.
func (s *SessionService) Modules(ctx context.Context, id string, cfg *louvain.Config, seed *int64) (*louvain.Result, error) {
	var res *louvain.Result
	err := s.operate(id, "modules", func(sess *session) (err error) {
		res, err = louvain.Detect(ctx, sess.brain, cfg,
			louvain.WithRand(newRand(seed)), louvain.WithLogger(log.Logger))
		return err
	})
	return res, err
}

// Hubs identifies hub nodes on the session graph.
func (s *SessionService) Hubs(id string, opts hubs.Options) (*hubs.Result, error) {
	var res *hubs.Result
	err := s.operate(id, "hubs", func(sess *session) (err error) {
		res, err = hubs.Run(sess.brain, opts, log.Logger)
		return err
	})
	return res, err
}

// Degenerate runs a degeneration simulation to completion on the session.
func (s *SessionService) Degenerate(ctx context.Context, id string, req degeneration.Request, seed *int64) (*degeneration.Result, error) {
	var res *degeneration.Result
	err := s.operate(id, "degenerate", func(sess *session) (err error) {
		res, err = degeneration.NewSimulator(newRand(seed), log.Logger).Run(ctx, sess.brain, req)
		return err
	})
	if err == nil {
		s.metrics.EdgesRemovedTotal.Add(float64(res.EdgesRemoved))
	}
	return res, err
}

// Graph snapshots the session graph.
func (s *SessionService) Graph(id string) (*models.GraphView, error) {
	var view *models.GraphView
	err := s.with(id, func(sess *session) error {
		view = graphView(sess.brain)
		return nil
	})
	return view, err
}

func (s *SessionService) lookup(id string) (*session, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, brain.ErrNotFound)
	}
	return sess, nil
}

func (s *SessionService) with(id string, fn func(*session) error) error {
	sess, err := s.lookup(id)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return fn(sess)
}

// operate runs a mutating analysis, records metrics and refreshes metadata.
func (s *SessionService) operate(id, operation string, fn func(*session) error) error {
	return s.with(id, func(sess *session) error {
		start := time.Now()
		err := fn(sess)
		s.metrics.RecordOperation(operation, err, time.Since(start), sess.brain.Graph.EdgeCount())
		if err != nil {
			log.Warn().Err(err).Str("session_id", id).Str("operation", operation).Msg("Operation failed")
			return err
		}
		refresh(sess)
		sess.meta.UpdatedAt = time.Now()
		log.Info().
			Str("session_id", id).
			Str("operation", operation).
			Int("edges", sess.meta.Edges).
			Dur("duration", time.Since(start)).
			Msg("Operation completed")
		return nil
	})
}

func refresh(sess *session) {
	b := sess.brain
	sess.meta.Nodes = b.Graph.NodeCount()
	sess.meta.Edges = b.Graph.EdgeCount()
	sess.meta.Directed = b.Graph.Directed()
	sess.meta.Threshold = Finite(b.Graph.Threshold())
	sess.meta.Modularity = nil
	if q, err := b.Modularity(); err == nil {
		sess.meta.Modularity = &q
	}
	sess.meta.Hubs = append([]int(nil), b.Hubs...)
}

func graphView(b *brain.Brain) *models.GraphView {
	view := &models.GraphView{
		Directed:  b.Graph.Directed(),
		Threshold: Finite(b.Graph.Threshold()),
		Edges:     b.Graph.Edges(),
	}
	for _, id := range b.Graph.Nodes() {
		n, _ := b.Graph.Node(id)
		nv := models.NodeView{
			ID:           id,
			Label:        n.Label,
			Degenerating: n.Degenerating,
			Excluded:     b.Matrix.Excluded(id),
			Properties:   n.Props,
		}
		if n.Coord != nil {
			nv.Coord = []float64{n.Coord.X, n.Coord.Y, n.Coord.Z}
		}
		if m, ok := n.Module(); ok {
			nv.Module = &m
		}
		if h, ok := n.HubScore(); ok {
			nv.HubScore = &h
		}
		view.Nodes = append(view.Nodes, nv)
	}
	return view
}

// Finite returns t, or nil for the no-threshold sentinel, which JSON cannot
// carry.
func Finite(t float64) *float64 {
	if math.IsInf(t, 0) || math.IsNaN(t) {
		return nil
	}
	return &t
}

func newRand(seed *int64) *rand.Rand {
	if seed != nil {
		return rand.New(rand.NewSource(*seed))
	}
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}
