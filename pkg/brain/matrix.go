package brain

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Matrix is the raw weighted adjacency matrix plus the exclusion mask.
// NaN marks "no measured connection"; the diagonal is always NaN.
type Matrix struct {
	dense    *mat.Dense
	excluded map[int]bool
}

// NewMatrix builds a square matrix from rows. The diagonal is forced to NaN.
func NewMatrix(rows [][]float64) (*Matrix, error) {
	n := len(rows)
	if n == 0 {
		return nil, fmt.Errorf("empty matrix: %w", ErrInput)
	}
	data := make([]float64, 0, n*n)
	for i, row := range rows {
		if len(row) != n {
			return nil, fmt.Errorf("matrix row %d has %d columns, want %d: %w", i, len(row), n, ErrInput)
		}
		data = append(data, row...)
	}
	return fromDense(mat.NewDense(n, n, data)), nil
}

// NewMatrixFromDense copies a gonum matrix. It must be square.
func NewMatrixFromDense(d mat.Matrix) (*Matrix, error) {
	r, c := d.Dims()
	if r != c || r == 0 {
		return nil, fmt.Errorf("matrix is %dx%d: %w", r, c, ErrInput)
	}
	return fromDense(mat.DenseCopyOf(d)), nil
}

// NaNMatrix returns an n×n matrix with no connections.
func NaNMatrix(n int) *Matrix {
	d := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			d.Set(i, j, math.NaN())
		}
	}
	return &Matrix{dense: d, excluded: make(map[int]bool)}
}

func fromDense(d *mat.Dense) *Matrix {
	n, _ := d.Dims()
	for i := 0; i < n; i++ {
		d.Set(i, i, math.NaN())
	}
	return &Matrix{dense: d, excluded: make(map[int]bool)}
}

// Size is the number of rows (and columns).
func (m *Matrix) Size() int {
	n, _ := m.dense.Dims()
	return n
}

// At returns the stored entry, ignoring the mask.
func (m *Matrix) At(i, j int) float64 { return m.dense.At(i, j) }

// Set stores an entry. Diagonal writes are ignored.
func (m *Matrix) Set(i, j int, v float64) {
	if i == j {
		return
	}
	m.dense.Set(i, j, v)
}

// Value returns the entry if it counts as a connection: off-diagonal,
// not NaN and with neither endpoint excluded.
func (m *Matrix) Value(i, j int) (float64, bool) {
	if i == j || m.excluded[i] || m.excluded[j] {
		return 0, false
	}
	n := m.Size()
	if i < 0 || j < 0 || i >= n || j >= n {
		return 0, false
	}
	v := m.dense.At(i, j)
	if math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// Exclude masks nodes: every entry in their rows and columns is ignored.
func (m *Matrix) Exclude(ids ...int) error {
	n := m.Size()
	for _, id := range ids {
		if id < 0 || id >= n {
			return fmt.Errorf("exclude node %d outside %d rows: %w", id, n, ErrInput)
		}
	}
	for _, id := range ids {
		m.excluded[id] = true
	}
	return nil
}

// Include removes nodes from the mask.
func (m *Matrix) Include(ids ...int) {
	for _, id := range ids {
		delete(m.excluded, id)
	}
}

func (m *Matrix) Excluded(id int) bool { return m.excluded[id] }

// ExcludedNodes returns masked node ids in ascending order.
func (m *Matrix) ExcludedNodes() []int {
	ids := make([]int, 0, len(m.excluded))
	for i := 0; i < m.Size(); i++ {
		if m.excluded[i] {
			ids = append(ids, i)
		}
	}
	return ids
}

// EmptyRow reports whether row i holds no measured connection at all.
func (m *Matrix) EmptyRow(i int) bool {
	for j := 0; j < m.Size(); j++ {
		if i != j && !math.IsNaN(m.dense.At(i, j)) {
			return false
		}
	}
	return true
}

// Dense returns a copy of the stored entries.
func (m *Matrix) Dense() *mat.Dense { return mat.DenseCopyOf(m.dense) }

// Clone returns a deep copy including the mask.
func (m *Matrix) Clone() *Matrix {
	c := &Matrix{dense: mat.DenseCopyOf(m.dense), excluded: make(map[int]bool, len(m.excluded))}
	for k := range m.excluded {
		c.excluded[k] = true
	}
	return c
}

// Rows returns the entries as nested slices.
func (m *Matrix) Rows() [][]float64 {
	n := m.Size()
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = mat.Row(nil, i, m.dense)
	}
	return rows
}
