package models

import (
	"time"

	"github.com/gilchrisn/connectome-service/pkg/brain"
	"github.com/gilchrisn/connectome-service/pkg/dataset"
)

// APIResponse wraps every JSON reply.
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Session describes one loaded brain held by the service.
type Session struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Nodes      int       `json:"nodes"`
	Edges      int       `json:"edges"`
	Directed   bool      `json:"directed"`
	Threshold  *float64  `json:"threshold,omitempty"`
	Modularity *float64  `json:"modularity,omitempty"`
	Hubs       []int     `json:"hubs,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type CreateSessionRequest struct {
	Name    string           `json:"name" validate:"max=100"`
	Dataset dataset.Document `json:"dataset" validate:"required"`
}

type CloneSessionRequest struct {
	Name string `json:"name" validate:"max=100"`
}

type ThresholdRequest struct {
	Mode             string   `json:"mode" validate:"omitempty,oneof=global local"`
	Value            *float64 `json:"value"`
	EdgePercent      *float64 `json:"edgePercent" validate:"omitempty,gte=0,lte=1"`
	TotalEdges       *int     `json:"totalEdges" validate:"omitempty,gte=0"`
	KeepSpanningTree bool     `json:"keepSpanningTree"`
	Rethreshold      bool     `json:"rethreshold"`
	SpanningOrder    string   `json:"spanningOrder" validate:"omitempty,oneof=min minimum max maximum"`
}

// ThresholdResponse reports a thresholding run. Threshold is omitted when
// no cutoff applies.
type ThresholdResponse struct {
	Mode        string   `json:"mode"`
	Threshold   *float64 `json:"threshold,omitempty"`
	Target      int      `json:"target"`
	Edges       int      `json:"edges"`
	ForestEdges int      `json:"forestEdges"`
	Shortfall   int      `json:"shortfall"`
	Warnings    []string `json:"warnings,omitempty"`
}

type ModulesRequest struct {
	Source    string  `json:"source" validate:"omitempty,oneof=matrix graph"`
	MaxLevels int     `json:"maxLevels" validate:"omitempty,gte=1"`
	Diagonal  float64 `json:"diagonal"`
	Seed      *int64  `json:"seed"`
}

type ModulesResponse struct {
	Modularity float64     `json:"modularity"`
	NumLevels  int         `json:"numLevels"`
	Modules    map[int]int `json:"modules"`
	Excluded   []int       `json:"excluded,omitempty"`
}

type HubsRequest struct {
	Weighted    bool     `json:"weighted"`
	SDThreshold *float64 `json:"sdThreshold" validate:"omitempty,gte=0"`
	Pseudo      bool     `json:"pseudo"`
}

type DegenerateRequest struct {
	ToxicNodes        []int       `json:"toxicNodes" validate:"omitempty,dive,gte=0"`
	RiskEdges         []brain.Key `json:"riskEdges"`
	WeightLoss        *float64    `json:"weightLoss" validate:"omitempty,gt=0"`
	EdgesRemovedLimit *int        `json:"edgesRemovedLimit" validate:"omitempty,gte=0"`
	WeightLossLimit   *float64    `json:"weightLossLimit" validate:"omitempty,gte=0"`
	PercentLimit      *float64    `json:"percentLimit" validate:"omitempty,gte=0,lte=1"`
	ThresholdLimit    *float64    `json:"thresholdLimit"`
	Spread            bool        `json:"spread"`
	SpreadThreshold   float64     `json:"spreadThreshold"`
	SpatialSearch     bool        `json:"spatialSearch"`
	RecordLengths     bool        `json:"recordLengths"`
	Seed              *int64      `json:"seed"`
}

// GraphView is the current graph of a session.
type GraphView struct {
	Directed  bool         `json:"directed"`
	Threshold *float64     `json:"threshold,omitempty"`
	Nodes     []NodeView   `json:"nodes"`
	Edges     []brain.Edge `json:"edges"`
}

type NodeView struct {
	ID           int              `json:"id"`
	Label        string           `json:"label,omitempty"`
	Coord        []float64        `json:"coord,omitempty"`
	Module       *int             `json:"module,omitempty"`
	HubScore     *float64         `json:"hubScore,omitempty"`
	Degenerating bool             `json:"degenerating,omitempty"`
	Excluded     bool             `json:"excluded,omitempty"`
	Properties   brain.Properties `json:"properties,omitempty"`
}

type HealthResponse struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
}
