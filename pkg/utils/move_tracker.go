package utils

import (
	"encoding/json"
	"io"
	"os"
	"time"
)

// MoveEvent is one node move recorded by an optimizer, written as a JSON line.
type MoveEvent struct {
	MoveNumber int     `json:"move"`
	Algorithm  string  `json:"algorithm"`
	Level      int     `json:"level"`
	Node       int     `json:"node"`
	FromComm   int     `json:"from_comm"`
	ToComm     int     `json:"to_comm"`
	Gain       float64 `json:"gain"`
	Modularity float64 `json:"modularity"`
	Timestamp  int64   `json:"timestamp"`
}

// MoveTracker streams MoveEvents. A nil tracker ignores every call.
type MoveTracker struct {
	closer    io.Closer
	encoder   *json.Encoder
	algorithm string
	moves     int
}

// NewMoveTracker writes events to w.
func NewMoveTracker(w io.Writer, algorithm string) *MoveTracker {
	mt := &MoveTracker{
		encoder:   json.NewEncoder(w),
		algorithm: algorithm,
	}
	if c, ok := w.(io.Closer); ok {
		mt.closer = c
	}
	return mt
}

// CreateMoveTracker writes events to a new file.
func CreateMoveTracker(filename, algorithm string) (*MoveTracker, error) {
	file, err := os.Create(filename)
	if err != nil {
		return nil, err
	}
	return NewMoveTracker(file, algorithm), nil
}

func (mt *MoveTracker) LogMove(level, node, fromComm, toComm int, gain, modularity float64) {
	if mt == nil {
		return
	}
	mt.moves++

	event := MoveEvent{
		MoveNumber: mt.moves,
		Algorithm:  mt.algorithm,
		Level:      level,
		Node:       node,
		FromComm:   fromComm,
		ToComm:     toComm,
		Gain:       gain,
		Modularity: modularity,
		Timestamp:  time.Now().Unix(),
	}

	_ = mt.encoder.Encode(event)
}

// Moves is the number of events logged so far.
func (mt *MoveTracker) Moves() int {
	if mt == nil {
		return 0
	}
	return mt.moves
}

func (mt *MoveTracker) Close() error {
	if mt == nil || mt.closer == nil {
		return nil
	}
	return mt.closer.Close()
}
