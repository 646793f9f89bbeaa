package core

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSumAndMean(t *testing.T) {
	assert.Equal(t, 0.0, Sum(nil))
	assert.Equal(t, 0.0, Mean(nil))
	assert.Equal(t, 15.0, Sum([]float64{5, 4, 3, 2, 1}))
	assert.Equal(t, 3.0, Mean([]float64{5, 4, 3, 2, 1}))
}

func TestRound(t *testing.T) {
	assert.Equal(t, 1.23, Round(1.2345, 2))
	assert.Equal(t, -1.24, Round(-1.2351, 2))
	assert.Equal(t, 0.0, Round(math.NaN(), 2))
	assert.Equal(t, 0.0, Round(math.Inf(1), 2))
}
