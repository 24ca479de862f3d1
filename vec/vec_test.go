package vec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddSub(t *testing.T) {
	a := Vec3{1, 2, 3}
	b := Vec3{4, 5, 6}

	assert.Equal(t, Vec3{5, 7, 9}, a.Add(b), "add")
	assert.Equal(t, Vec3{-3, -3, -3}, a.Sub(b), "sub")
}

func TestScaleDot(t *testing.T) {
	a := Vec3{1, 2, 3}

	assert.Equal(t, Vec3{2, 4, 6}, a.Scale(2), "scale")
	assert.Equal(t, 14.0, a.Dot(a), "dot")
}

func TestNorm(t *testing.T) {
	a := Vec3{3, 4, 0}
	assert.Equal(t, 25.0, a.Norm2(), "norm2")
	assert.Equal(t, 5.0, a.Norm(), "norm")
}

func TestMulAdd(t *testing.T) {
	a := Vec3{1, 1, 1}
	b := Vec3{2, 2, 2}
	assert.Equal(t, Vec3{3, 3, 3}, a.MulAdd(b, 1), "muladd 1x")
	assert.Equal(t, Vec3{5, 5, 5}, a.MulAdd(b, 2), "muladd 2x")
}
