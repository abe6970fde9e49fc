package safemath

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAdd64(t *testing.T) {
	tests := []struct {
		name string
		a, b uint64
		want uint64
		ok   bool
	}{
		{"zero plus zero", 0, 0, 0, true},
		{"small values", 100, 300, 400, true},
		{"at boundary", math.MaxUint64 - 1, 1, math.MaxUint64, true},
		{"overflow max plus one", math.MaxUint64, 1, 0, false},
		{"overflow max plus max", math.MaxUint64, math.MaxUint64, math.MaxUint64 - 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Add64(tt.a, tt.b)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSub64(t *testing.T) {
	tests := []struct {
		name string
		a, b uint64
		want uint64
		ok   bool
	}{
		{"equal values", 5, 5, 0, true},
		{"positive result", 400, 100, 300, true},
		{"underflow", 0, 1, math.MaxUint64, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Sub64(tt.a, tt.b)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMul64(t *testing.T) {
	got, ok := Mul64(100, 4)
	assert.True(t, ok)
	assert.Equal(t, uint64(400), got)

	_, ok = Mul64(math.MaxUint64, 2)
	assert.False(t, ok)

	got, ok = Mul64(math.MaxUint64, 0)
	assert.True(t, ok)
	assert.Equal(t, uint64(0), got)
}
