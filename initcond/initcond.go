// Package initcond loads initial conditions from a plain whitespace-
// delimited text table, one particle per row, columns
// mass x y z vx vy vz. It is grounded on the teacher's table.ReadTable
// call shape (render/halo/io.go's ReadRockstar, render/scripts'
// profile.go): select columns by index, let the library skip blank/
// comment lines.
package initcond

import (
	"fmt"

	"github.com/phil-mansfield/table"

	"github.com/cmfredes/hermite4/body"
	"github.com/cmfredes/hermite4/vec"
)

// columns mass, x, y, z, vx, vy, vz in the initial-conditions file.
var columns = []int{0, 1, 2, 3, 4, 5, 6}

// TableFile loads a body.Snapshot from path, an InitialConditions
// collaborator the sim package depends on only through its interface.
type TableFile struct {
	Path string
}

// NewTableFile returns a loader reading from path.
func NewTableFile(path string) *TableFile {
	return &TableFile{Path: path}
}

// Load reads the file and returns a Snapshot. It returns an error
// rather than panicking: this is a boundary function reading untrusted
// external input, exactly as table.ReadTable itself does.
func (tf *TableFile) Load() (body.Snapshot, error) {
	cols, err := table.ReadTable(tf.Path, columns, nil)
	if err != nil {
		return body.Snapshot{}, fmt.Errorf("initcond: %v", err)
	}
	if len(cols) != len(columns) {
		return body.Snapshot{}, fmt.Errorf(
			"initcond: expected %d columns, got %d", len(columns), len(cols),
		)
	}

	n := len(cols[0])
	for _, c := range cols {
		if len(c) != n {
			return body.Snapshot{}, fmt.Errorf("initcond: ragged columns in %s", tf.Path)
		}
	}

	snap := body.Snapshot{
		ID: make([]int64, n),
		M:  make([]float64, n),
		R:  make([]vec.Vec3, n),
		V:  make([]vec.Vec3, n),
	}
	for i := 0; i < n; i++ {
		snap.ID[i] = int64(i)
		snap.M[i] = cols[0][i]
		snap.R[i] = vec.Vec3{cols[1][i], cols[2][i], cols[3][i]}
		snap.V[i] = vec.Vec3{cols[4][i], cols[5][i], cols[6][i]}
	}
	return snap, nil
}
