// Package degeneration simulates progressive network failure: edges touching
// "toxic" nodes are weakened at random until a stopping limit is reached or
// nothing is left to weaken.
//
// A Session is a small state machine:
//
//	ACTIVE     limit remaining and at-risk edges available
//	SPREADING  no at-risk edges; spatial search is adding the nearest node
//	EXHAUSTED  nothing left to act on (terminal, not an error)
//	DONE       limit reached (terminal)
//
// All validation, including the weight-budget pre-flight check, happens in
// Start, so a returned error means the brain was not touched.
package degeneration

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/gilchrisn/connectome-service/pkg/brain"
)

// State of a degeneration session.
type State int

const (
	StateActive State = iota
	StateSpreading
	StateExhausted
	StateDone
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "ACTIVE"
	case StateSpreading:
		return "SPREADING"
	case StateExhausted:
		return "EXHAUSTED"
	case StateDone:
		return "DONE"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Terminal reports whether no further step can change anything.
func (s State) Terminal() bool { return s == StateExhausted || s == StateDone }

// Request configures one session. The stopping limit is PercentLimit (or
// ThresholdLimit, converted to a percentage) if set, else WeightLossLimit if
// set, else EdgesRemovedLimit.
type Request struct {
	// ToxicNodes defaults to every node when both it and RiskEdges are empty.
	ToxicNodes []int
	// RiskEdges fixes the at-risk set instead of deriving it from the toxic
	// nodes. Only nodes that join later (by spread or spatial search) widen it.
	RiskEdges []brain.Key

	WeightLoss        float64
	EdgesRemovedLimit int
	WeightLossLimit   *float64
	PercentLimit      *float64
	ThresholdLimit    *float64

	Spread          bool
	SpreadThreshold float64
	SpatialSearch   bool
	RecordLengths   bool
}

// DefaultRequest removes a single edge in steps of 0.1.
func DefaultRequest() Request {
	return Request{WeightLoss: 0.1, EdgesRemovedLimit: 1}
}

// DyingEdge is an edge removed during a session.
type DyingEdge struct {
	From   int      `json:"from" yaml:"from"`
	To     int      `json:"to" yaml:"to"`
	Weight float64  `json:"weight" yaml:"weight"`
	Length *float64 `json:"length,omitempty" yaml:"length,omitempty"`
	Step   int      `json:"step" yaml:"step"`
}

// Result summarises a session.
type Result struct {
	ToxicNodes   []int       `json:"toxicNodes" yaml:"toxic_nodes"`
	Removed      []DyingEdge `json:"removed" yaml:"removed"`
	State        State       `json:"state" yaml:"state"`
	Steps        int         `json:"steps" yaml:"steps"`
	EdgesRemoved int         `json:"edgesRemoved" yaml:"edges_removed"`
	WeightLost   float64     `json:"weightLost" yaml:"weight_lost"`
	Limit        float64     `json:"limit" yaml:"limit"`
}

// Simulator starts sessions sharing one random source.
type Simulator struct {
	rng    *rand.Rand
	logger zerolog.Logger
}

// NewSimulator creates a simulator. Inject a seeded rng for reproducible runs.
func NewSimulator(rng *rand.Rand, logger zerolog.Logger) *Simulator {
	return &Simulator{rng: rng, logger: logger.With().Str("component", "degeneration").Logger()}
}

// Session is one running degeneration.
type Session struct {
	brain  *brain.Brain
	rng    *rand.Rand
	logger zerolog.Logger
	req    Request

	toxic      []int
	toxicSet   map[int]bool
	seeded     int // toxic[seeded:] joined during the run
	flagged    int
	risk       []brain.Key
	explicit   []brain.Key
	budgetMode bool
	limit      float64

	state  State
	result Result
}

// Start validates req against b and prepares a session. Nothing is mutated.
func (s *Simulator) Start(b *brain.Brain, req Request) (*Session, error) {
	g := b.Graph
	if math.IsNaN(req.WeightLoss) || req.WeightLoss <= 0 {
		return nil, fmt.Errorf("weight loss %v must be positive: %w", req.WeightLoss, brain.ErrInput)
	}
	if req.EdgesRemovedLimit < 0 {
		return nil, fmt.Errorf("negative edge limit %d: %w", req.EdgesRemovedLimit, brain.ErrInput)
	}
	for _, id := range req.ToxicNodes {
		if !g.HasNode(id) {
			return nil, fmt.Errorf("toxic node %d not in graph: %w", id, brain.ErrInput)
		}
	}
	for _, k := range req.RiskEdges {
		if !g.HasEdge(k.From, k.To) {
			return nil, fmt.Errorf("risk edge %d-%d not in graph: %w", k.From, k.To, brain.ErrInput)
		}
	}
	if req.SpatialSearch || req.RecordLengths {
		for _, id := range g.Nodes() {
			n, _ := g.Node(id)
			if n.Coord == nil && (req.SpatialSearch || g.Degree(id) > 0) {
				return nil, fmt.Errorf("node %d has no coordinates: %w", id, brain.ErrInput)
			}
		}
	}

	ss := &Session{
		brain:    b,
		rng:      s.rng,
		logger:   s.logger,
		req:      req,
		toxicSet: make(map[int]bool),
	}

	percent := req.PercentLimit
	if percent == nil && req.ThresholdLimit != nil {
		p := b.ThresholdToPercentage(*req.ThresholdLimit)
		percent = &p
	}
	switch {
	case percent != nil:
		p := *percent
		if math.IsNaN(p) || p < 0 || p > 1 {
			return nil, fmt.Errorf("percentage limit %v outside [0,1]: %w", p, brain.ErrInput)
		}
		ss.limit = float64(g.EdgeCount()) - math.Round(p*float64(b.PossibleEdges()))
		if ss.limit < 0 {
			s.logger.Warn().Float64("percent", p).Float64("current", b.PercentConnected()).Msg("Graph already below connectivity target")
			ss.limit = 0
		}
	case req.WeightLossLimit != nil:
		if math.IsNaN(*req.WeightLossLimit) || *req.WeightLossLimit < 0 {
			return nil, fmt.Errorf("weight loss limit %v: %w", *req.WeightLossLimit, brain.ErrInput)
		}
		ss.budgetMode = true
		ss.limit = *req.WeightLossLimit
	default:
		ss.limit = float64(req.EdgesRemovedLimit)
	}

	for _, id := range req.ToxicNodes {
		ss.addToxic(id)
	}
	if len(req.ToxicNodes) == 0 && len(req.RiskEdges) == 0 {
		for _, id := range g.Nodes() {
			ss.addToxic(id)
		}
	}
	ss.seeded = len(ss.toxic)

	for _, k := range req.RiskEdges {
		ss.explicit = append(ss.explicit, g.Key(k.From, k.To))
	}
	ss.risk = ss.riskEdges()

	if ss.budgetMode {
		available := 0.0
		for _, k := range ss.risk {
			w, _ := g.Weight(k.From, k.To)
			available += math.Abs(w)
		}
		if available < ss.limit {
			return nil, fmt.Errorf("weight budget %v exceeds %v available on %d at-risk edges: %w",
				ss.limit, available, len(ss.risk), brain.ErrInsufficientResource)
		}
	}

	ss.state = StateActive
	if ss.limit <= 0 {
		ss.state = StateDone
	}
	ss.result.Limit = ss.limit
	return ss, nil
}

// Run starts a session and steps it to a terminal state. On cancellation the
// partial result is returned with the context error.
func (s *Simulator) Run(ctx context.Context, b *brain.Brain, req Request) (*Result, error) {
	ss, err := s.Start(b, req)
	if err != nil {
		return nil, err
	}
	for !ss.State().Terminal() {
		if err := ctx.Err(); err != nil {
			return ss.Result(), err
		}
		ss.Step()
	}

	res := ss.Result()
	s.logger.Info().
		Str("state", res.State.String()).
		Int("steps", res.Steps).
		Int("edges_removed", res.EdgesRemoved).
		Float64("weight_lost", res.WeightLost).
		Int("toxic_nodes", len(res.ToxicNodes)).
		Msg("Degeneration finished")
	return res, nil
}

func (ss *Session) State() State { return ss.state }

// Result returns a snapshot of the session's progress.
func (ss *Session) Result() *Result {
	res := ss.result
	res.State = ss.state
	res.ToxicNodes = append(make([]int, 0, len(ss.toxic)), ss.toxic...)
	res.Removed = append([]DyingEdge(nil), ss.result.Removed...)
	return &res
}

// Step performs one transition and returns the new state.
func (ss *Session) Step() State {
	if ss.state.Terminal() {
		return ss.state
	}
	if ss.limit <= 0 {
		ss.state = StateDone
		return ss.state
	}

	if len(ss.risk) == 0 {
		if !ss.req.SpatialSearch {
			ss.state = StateExhausted
			return ss.state
		}
		ss.state = StateSpreading
		id, ok := ss.nearest()
		if !ok {
			ss.state = StateExhausted
			return ss.state
		}
		ss.logger.Debug().Int("node", id).Msg("Spatial search added node")
		ss.addToxic(id)
		ss.risk = ss.riskEdges()
		if len(ss.risk) == 0 {
			ss.state = StateExhausted
		}
		return ss.state
	}

	ss.state = StateActive
	ss.flagToxic()
	g := ss.brain.Graph

	idx := ss.rng.Intn(len(ss.risk))
	key := ss.risk[idx]
	w, _ := g.Weight(key.From, key.To)

	loss := ss.req.WeightLoss
	var nw float64
	switch {
	case math.Abs(w) <= loss:
		loss = math.Abs(w)
	case w > 0:
		nw = w - loss
	default:
		nw = w + loss
	}
	_ = g.SetWeight(key.From, key.To, nw)
	ss.result.Steps++
	ss.result.WeightLost += loss

	if ss.req.Spread {
		for _, id := range []int{key.From, key.To} {
			if !ss.toxicSet[id] && math.Abs(nw) > ss.req.SpreadThreshold {
				ss.addToxic(id)
			}
		}
	}

	removed := false
	if t := g.Threshold(); !brain.IsUnthresholded(t) && nw < t {
		g.RemoveEdge(key.From, key.To)
		removed = true
		ss.result.EdgesRemoved++
		ss.result.Removed = append(ss.result.Removed, ss.dyingEdge(key, nw))
		if !ss.budgetMode {
			ss.limit--
		}
	}
	ss.brain.RefreshEdge(key.From, key.To)
	if ss.budgetMode {
		ss.limit -= loss
	}

	if ss.explicit == nil || ss.req.Spread {
		ss.risk = ss.riskEdges()
	} else if removed || nw == 0 {
		ss.risk = append(ss.risk[:idx], ss.risk[idx+1:]...)
	}

	if ss.limit <= 0 {
		ss.state = StateDone
	}
	return ss.state
}

func (ss *Session) addToxic(id int) {
	if ss.toxicSet[id] {
		return
	}
	ss.toxicSet[id] = true
	ss.toxic = append(ss.toxic, id)
}

func (ss *Session) flagToxic() {
	for ; ss.flagged < len(ss.toxic); ss.flagged++ {
		if n, ok := ss.brain.Graph.Node(ss.toxic[ss.flagged]); ok {
			n.Degenerating = true
		}
	}
}

// riskEdges lists the edges still carrying weight that touch a toxic node.
// With explicit risk edges it is those edges plus the edges of nodes that
// joined during the run.
func (ss *Session) riskEdges() []brain.Key {
	g := ss.brain.Graph
	seen := make(map[brain.Key]bool)
	var keys []brain.Key
	add := func(k brain.Key) {
		if w, ok := g.Weight(k.From, k.To); ok && w != 0 && !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}

	nodes := ss.toxic
	if ss.explicit != nil {
		for _, k := range ss.explicit {
			add(k)
		}
		nodes = ss.toxic[ss.seeded:]
	}
	if len(nodes) > 0 {
		for _, e := range g.EdgesTouching(nodes) {
			add(g.Key(e.From, e.To))
		}
	}
	return keys
}

// live reports whether id has an edge that still carries weight.
func (ss *Session) live(id int) bool {
	for _, e := range ss.brain.Graph.EdgesTouching([]int{id}) {
		if e.Weight != 0 {
			return true
		}
	}
	return false
}

// nearest finds the live, non-toxic node closest to any toxic node.
func (ss *Session) nearest() (int, bool) {
	g := ss.brain.Graph
	best, bestDist := -1, math.Inf(1)
	for _, id := range g.Nodes() {
		if ss.toxicSet[id] || !ss.live(id) {
			continue
		}
		n, _ := g.Node(id)
		if n.Coord == nil {
			continue
		}
		for _, t := range ss.toxic {
			tn, ok := g.Node(t)
			if !ok || tn.Coord == nil {
				continue
			}
			if d := r3.Norm(r3.Sub(*n.Coord, *tn.Coord)); d < bestDist {
				best, bestDist = id, d
			}
		}
	}
	return best, best >= 0
}

func (ss *Session) dyingEdge(key brain.Key, w float64) DyingEdge {
	d := DyingEdge{From: key.From, To: key.To, Weight: w, Step: ss.result.Steps}
	if ss.req.RecordLengths {
		a, _ := ss.brain.Graph.Node(key.From)
		b, _ := ss.brain.Graph.Node(key.To)
		if a.Coord != nil && b.Coord != nil {
			l := r3.Norm(r3.Sub(*a.Coord, *b.Coord))
			d.Length = &l
		}
	}
	return d
}
