// Package dataset reads connectome inputs: whitespace or delimiter separated
// adjacency matrices, edge lists, node coordinate tables and node property
// files, plus a single YAML/JSON document bundling all of them.
package dataset

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/gilchrisn/connectome-service/pkg/brain"
)

// MatrixOptions controls ReadMatrix.
type MatrixOptions struct {
	// Delimiter splits columns; empty splits on whitespace.
	Delimiter string
	// NAValue marks a missing entry. Any field containing it becomes NaN.
	NAValue string
}

// DefaultMatrixOptions splits on whitespace and treats "nan" as missing.
func DefaultMatrixOptions() MatrixOptions {
	return MatrixOptions{NAValue: "nan"}
}

const headerMarker = "begins line"

// ReadMatrix parses a square adjacency matrix, one row per line. A header
// line containing "begins line N" moves the start of the data to line N.
func ReadMatrix(r io.Reader, opts MatrixOptions) (*brain.Matrix, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	start := 0
	for _, line := range lines {
		if i := strings.Index(line, headerMarker); i >= 0 {
			fields := strings.Fields(line[i+len(headerMarker):])
			if len(fields) == 0 {
				return nil, fmt.Errorf("header %q has no line number: %w", line, brain.ErrInput)
			}
			n, err := strconv.Atoi(fields[0])
			if err != nil || n < 1 {
				return nil, fmt.Errorf("header %q: bad line number: %w", line, brain.ErrInput)
			}
			start = n - 1
			break
		}
	}

	var rows [][]float64
	for i := start; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		var fields []string
		if opts.Delimiter == "" {
			fields = strings.Fields(line)
		} else {
			fields = strings.Split(line, opts.Delimiter)
		}
		row := make([]float64, len(fields))
		for j, f := range fields {
			f = strings.TrimSpace(f)
			if opts.NAValue != "" && strings.Contains(strings.ToLower(f), strings.ToLower(opts.NAValue)) {
				row[j] = math.NaN()
				continue
			}
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d column %d: %q: %w", i+1, j+1, f, brain.ErrInput)
			}
			row[j] = v
		}
		rows = append(rows, row)
	}
	return brain.NewMatrix(rows)
}

// ReadEdgeList parses "from to [weight]" lines with integer node ids into a
// matrix sized to the largest id. Missing weights default to 1. Lines
// starting with # are comments.
func ReadEdgeList(r io.Reader, directed bool) (*brain.Matrix, error) {
	type entry struct {
		from, to int
		weight   float64
	}
	var entries []entry
	maxID := -1

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 2 {
			return nil, fmt.Errorf("line %d: want at least two fields: %w", lineNo, brain.ErrInput)
		}
		from, err1 := strconv.Atoi(parts[0])
		to, err2 := strconv.Atoi(parts[1])
		if err1 != nil || err2 != nil || from < 0 || to < 0 {
			return nil, fmt.Errorf("line %d: node ids must be non-negative integers: %w", lineNo, brain.ErrInput)
		}
		weight := 1.0
		if len(parts) >= 3 {
			w, err := strconv.ParseFloat(parts[2], 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: weight %q: %w", lineNo, parts[2], brain.ErrInput)
			}
			weight = w
		}
		entries = append(entries, entry{from, to, weight})
		maxID = max(maxID, from, to)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if maxID < 0 {
		return nil, fmt.Errorf("edge list is empty: %w", brain.ErrInput)
	}

	m := brain.NaNMatrix(maxID + 1)
	for _, e := range entries {
		m.Set(e.from, e.to, e.weight)
		if !directed {
			m.Set(e.to, e.from, e.weight)
		}
	}
	return m, nil
}

// ReadSpatial parses "label x y z" lines, one per matrix row. convertMNI maps
// MNI millimetre coordinates onto the 2mm template voxel grid.
func ReadSpatial(r io.Reader, convertMNI bool) ([]brain.NodeInfo, error) {
	var rows []brain.NodeInfo
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 4 {
			return nil, fmt.Errorf("line %d: want label x y z: %w", lineNo, brain.ErrInput)
		}
		var xyz [3]float64
		for i := range xyz {
			v, err := strconv.ParseFloat(parts[i+1], 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: coordinate %q: %w", lineNo, parts[i+1], brain.ErrInput)
			}
			xyz[i] = v
		}
		if convertMNI {
			xyz[0] = 45 - xyz[0]/2
			xyz[1] = 63 + xyz[1]/2
			xyz[2] = 36 + xyz[2]/2
		}
		rows = append(rows, brain.NodeInfo{
			Label: parts[0],
			Coord: &r3.Vec{X: xyz[0], Y: xyz[1], Z: xyz[2]},
		})
	}
	return rows, scanner.Err()
}

// PropertyColumn is a property read from a file.
type PropertyColumn struct {
	Name   string
	Nodes  []int
	Values []brain.Value
}

// ReadProperties parses a property file: the first line is the property
// name, the rest are "node value" pairs. Values that parse as numbers or
// booleans are typed accordingly, anything else is kept as a string.
func ReadProperties(r io.Reader) (*PropertyColumn, error) {
	scanner := bufio.NewScanner(r)
	col := &PropertyColumn{}
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if col.Name == "" {
			col.Name = line
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 2 {
			return nil, fmt.Errorf("line %d: want node and value: %w", lineNo, brain.ErrInput)
		}
		id, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: node %q: %w", lineNo, parts[0], brain.ErrInput)
		}
		col.Nodes = append(col.Nodes, id)
		col.Values = append(col.Values, parseValue(strings.Join(parts[1:], " ")))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if col.Name == "" || len(col.Nodes) == 0 {
		return nil, fmt.Errorf("no data in properties file: %w", brain.ErrInput)
	}
	return col, nil
}

func parseValue(s string) brain.Value {
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return brain.Float(f)
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return brain.Bool(b)
	}
	return brain.String(s)
}
