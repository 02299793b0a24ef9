package louvain

// Result represents the algorithm output
type Result struct {
	Levels           []LevelInfo `json:"levels"`
	FinalCommunities map[int]int `json:"final_communities"`
	Modularity       float64     `json:"modularity"`
	NumLevels        int         `json:"num_levels"`
	Excluded         []int       `json:"excluded,omitempty"`
	Statistics       Statistics  `json:"statistics"`
}

// LevelInfo contains information about each hierarchical level.
// Assignments is indexed by the rows of the level-0 graph.
type LevelInfo struct {
	Level          int           `json:"level"`
	Assignments    []int         `json:"assignments"`
	Communities    map[int][]int `json:"communities"`
	Modularity     float64       `json:"modularity"`
	NumCommunities int           `json:"num_communities"`
	NumMoves       int           `json:"num_moves"`
	RuntimeMS      int64         `json:"runtime_ms"`
}

// Statistics contains algorithm performance metrics
type Statistics struct {
	TotalSweeps int          `json:"total_sweeps"`
	TotalMoves  int          `json:"total_moves"`
	RuntimeMS   int64        `json:"runtime_ms"`
	LevelStats  []LevelStats `json:"level_stats"`
}

// LevelStats contains per-level statistics
type LevelStats struct {
	Level             int     `json:"level"`
	Nodes             int     `json:"nodes"`
	Sweeps            int     `json:"sweeps"`
	Moves             int     `json:"moves"`
	InitialModularity float64 `json:"initial_modularity"`
	FinalModularity   float64 `json:"final_modularity"`
	Accepted          bool    `json:"accepted"`
	RuntimeMS         int64   `json:"runtime_ms"`
}
