package dataset

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"

	"github.com/gilchrisn/connectome-service/pkg/brain"
)

// Document is a complete dataset in one YAML or JSON file. Matrix entries
// that are null are missing measurements.
type Document struct {
	Directed       bool                           `json:"directed,omitempty" yaml:"directed,omitempty"`
	DropEmptyNodes bool                           `json:"dropEmptyNodes,omitempty" yaml:"dropEmptyNodes,omitempty"`
	Matrix         [][]*float64                   `json:"matrix" yaml:"matrix" validate:"required,min=1"`
	Nodes          []NodeDoc                      `json:"nodes,omitempty" yaml:"nodes,omitempty" validate:"omitempty,dive"`
	Excluded       []int                          `json:"excluded,omitempty" yaml:"excluded,omitempty"`
	Properties     map[string]map[int]interface{} `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// NodeDoc labels and positions one matrix row.
type NodeDoc struct {
	Label string    `json:"label,omitempty" yaml:"label,omitempty"`
	Coord []float64 `json:"coord,omitempty" yaml:"coord,omitempty" validate:"omitempty,len=3"`
}

// Format of a document file.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// DecodeDocument reads a document in the given format.
func DecodeDocument(r io.Reader, format Format) (*Document, error) {
	var doc Document
	var err error
	switch format {
	case FormatJSON:
		err = json.NewDecoder(r).Decode(&doc)
	case FormatYAML:
		err = yaml.NewDecoder(r).Decode(&doc)
	default:
		return nil, fmt.Errorf("unknown document format %q: %w", format, brain.ErrInput)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s document: %v: %w", format, err, brain.ErrInput)
	}
	return &doc, nil
}

// ToBrain builds a Brain with nodes but no edges.
func (d *Document) ToBrain() (*brain.Brain, error) {
	rows := make([][]float64, len(d.Matrix))
	for i, row := range d.Matrix {
		rows[i] = make([]float64, len(row))
		for j, v := range row {
			if v == nil {
				rows[i][j] = math.NaN()
			} else {
				rows[i][j] = *v
			}
		}
	}
	m, err := brain.NewMatrix(rows)
	if err != nil {
		return nil, err
	}
	if err := m.Exclude(d.Excluded...); err != nil {
		return nil, err
	}

	var opts []brain.Option
	if d.Directed {
		opts = append(opts, brain.WithDirected())
	}
	if d.DropEmptyNodes {
		opts = append(opts, brain.WithDropEmptyNodes())
	}
	b := brain.New(m, opts...)

	if len(d.Nodes) > 0 {
		table := make([]brain.NodeInfo, len(d.Nodes))
		for i, n := range d.Nodes {
			table[i].Label = n.Label
			switch len(n.Coord) {
			case 0:
			case 3:
				table[i].Coord = &r3.Vec{X: n.Coord[0], Y: n.Coord[1], Z: n.Coord[2]}
			default:
				return nil, fmt.Errorf("node %d: coordinate needs 3 values, has %d: %w", i, len(n.Coord), brain.ErrInput)
			}
		}
		if err := b.SetNodeTable(table); err != nil {
			return nil, err
		}
	}

	names := make([]string, 0, len(d.Properties))
	for name := range d.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		byNode := d.Properties[name]
		ids := make([]int, 0, len(byNode))
		for id := range byNode {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		values := make([]brain.Value, len(ids))
		for i, id := range ids {
			v, err := brain.ValueOf(byNode[id])
			if err != nil {
				return nil, fmt.Errorf("property %q node %d: %w", name, id, err)
			}
			values[i] = v
		}
		if err := b.SetProperty(name, ids, values); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Load reads a brain from path. .yaml, .yml and .json files are documents;
// anything else is a whitespace separated matrix.
func Load(path string, directed bool) (*brain.Brain, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		doc, err := DecodeDocument(f, FormatYAML)
		if err != nil {
			return nil, err
		}
		doc.Directed = doc.Directed || directed
		return doc.ToBrain()
	case ".json":
		doc, err := DecodeDocument(f, FormatJSON)
		if err != nil {
			return nil, err
		}
		doc.Directed = doc.Directed || directed
		return doc.ToBrain()
	case ".edges", ".edgelist":
		m, err := ReadEdgeList(f, directed)
		if err != nil {
			return nil, err
		}
		return newBrain(m, directed), nil
	default:
		m, err := ReadMatrix(f, DefaultMatrixOptions())
		if err != nil {
			return nil, err
		}
		return newBrain(m, directed), nil
	}
}

func newBrain(m *brain.Matrix, directed bool) *brain.Brain {
	if directed {
		return brain.New(m, brain.WithDirected())
	}
	return brain.New(m)
}

// LoadSpatial attaches a coordinate table file to b.
func LoadSpatial(b *brain.Brain, path string, convertMNI bool) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	rows, err := ReadSpatial(f, convertMNI)
	if err != nil {
		return err
	}
	return b.SetNodeTable(rows)
}

// LoadProperties attaches a property file to b.
func LoadProperties(b *brain.Brain, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	col, err := ReadProperties(f)
	if err != nil {
		return err
	}
	return b.SetProperty(col.Name, col.Nodes, col.Values)
}

// FromBrain snapshots the matrix and node table of b as a document.
func FromBrain(b *brain.Brain) *Document {
	doc := &Document{
		Directed: b.Graph.Directed(),
		Excluded: b.Matrix.ExcludedNodes(),
	}
	for _, row := range b.Matrix.Rows() {
		out := make([]*float64, len(row))
		for j, v := range row {
			if !math.IsNaN(v) {
				v := v
				out[j] = &v
			}
		}
		doc.Matrix = append(doc.Matrix, out)
	}
	doc.Nodes = make([]NodeDoc, b.Matrix.Size())
	for i := range doc.Nodes {
		n, ok := b.Graph.Node(i)
		if !ok {
			continue
		}
		doc.Nodes[i].Label = n.Label
		if n.Coord != nil {
			doc.Nodes[i].Coord = []float64{n.Coord.X, n.Coord.Y, n.Coord.Z}
		}
	}
	return doc
}
