package centroid

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefine_SymmetricPatch(t *testing.T) {
	mi := patch3x3([3][3]float64{
		{1, 2, 1},
		{2, 5, 2},
		{1, 2, 1},
	}, 1)

	r, err := Refine(mi.Locator(1, 1), 0, false)
	require.NoError(t, err)
	assert.Equal(t, 0.0, r.X)
	assert.Equal(t, 0.0, r.Y)
	assert.Equal(t, 5.0, r.Peak)
	assert.False(t, r.QuarticBad)
	assert.InDelta(t, 7.0/12, r.SizeX2, 1e-12)
	assert.InDelta(t, r.XErr, r.YErr, 1e-12)
	assert.Greater(t, r.XErr, 0.0)
}

func TestRefine_NegativeSource(t *testing.T) {
	mi := patch3x3([3][3]float64{
		{-1, -2, -1},
		{-2, -5, -2},
		{-1, -2, -1},
	}, 1)

	r, err := Refine(mi.Locator(1, 1), 0, true)
	require.NoError(t, err)
	assert.Equal(t, 0.0, math.Abs(r.X))
	assert.Equal(t, 0.0, math.Abs(r.Y))
	assert.Equal(t, -5.0, r.Peak)
	assert.InDelta(t, 7.0/12, r.SizeX2, 1e-12)
}

func TestRefine_OffsetPatch(t *testing.T) {
	mi := patch3x3([3][3]float64{
		{0, 1, 0},
		{1, 4, 3},
		{0, 1, 0},
	}, 1)

	r, err := Refine(mi.Locator(1, 1), 0, false)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, r.FirstGuessX, 1e-12)
	assert.InDelta(t, 0.3123437, r.X, 1e-6)
	assert.Equal(t, 0.0, r.Y)
	assert.InDelta(t, 4.125, r.Peak, 1e-12)
}

func TestRefine_NegativeMirrorsErrors(t *testing.T) {
	rows := [3][3]float64{
		{0, 1, 0},
		{1, 4, 3},
		{0, 1, 0},
	}
	var mirrored [3][3]float64
	for y := range rows {
		for x := range rows[y] {
			mirrored[y][x] = -rows[y][x]
		}
	}

	for _, sigma := range []float64{0, 1.5} {
		pos, err := Refine(patch3x3(rows, 2).Locator(1, 1), sigma, false)
		require.NoError(t, err)
		neg, err := Refine(patch3x3(mirrored, 2).Locator(1, 1), sigma, true)
		require.NoError(t, err)

		assert.Equal(t, pos.X, neg.X, "sigma=%g", sigma)
		assert.Equal(t, pos.Y, neg.Y, "sigma=%g", sigma)
		assert.Equal(t, pos.XErr, neg.XErr, "sigma=%g", sigma)
		assert.Equal(t, pos.YErr, neg.YErr, "sigma=%g", sigma)
		assert.Equal(t, pos.Peak, -neg.Peak, "sigma=%g", sigma)
	}
}

func TestRefine_Failures(t *testing.T) {
	tests := []struct {
		name     string
		rows     [3][3]float64
		negative bool
		want     error
	}{
		{
			name: "flat row",
			rows: [3][3]float64{{1, 1, 1}, {3, 3, 3}, {1, 1, 1}},
			want: ErrNoSecondDerivative,
		},
		{
			name: "flat column",
			rows: [3][3]float64{{1, 3, 1}, {1, 3, 1}, {1, 3, 1}},
			want: ErrNoSecondDerivative,
		},
		{
			name: "minimum for positive source",
			rows: [3][3]float64{{5, 4, 5}, {4, 1, 4}, {5, 4, 5}},
			want: ErrNotAtMaximum,
		},
		{
			name:     "maximum for negative source",
			rows:     [3][3]float64{{1, 2, 1}, {2, 5, 2}, {1, 2, 1}},
			negative: true,
			want:     ErrNotAtMaximum,
		},
		{
			name: "shallow curvature",
			rows: [3][3]float64{{0, 0, 0}, {0, 10, 19.9}, {0, 0, 0}},
			want: ErrAlmostNoSecondDerivative,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mi := patch3x3(tt.rows, 1)
			r, err := Refine(mi.Locator(1, 1), 0, tt.negative)
			assert.Nil(t, r)
			assert.ErrorIs(t, err, tt.want)
			assert.False(t, IsFatal(err))
		})
	}
}

func TestRefine_QuarticImprovesOnQuadratic(t *testing.T) {
	const offY = -0.15
	for _, sigma := range []float64{1, 1.5, 2} {
		for _, offX := range []float64{0.05, 0.1, 0.2, 0.3, 0.4} {
			mi := gaussianImage(9, 9, 4+offX, 4+offY, 100, sigma, 0, 1)

			r, err := RefineQuick(mi, 4, 4, false)
			require.NoError(t, err, "sigma=%g off=%g", sigma, offX)
			require.False(t, r.QuarticBad)

			quadErr := math.Abs(r.FirstGuessX - offX)
			quartErr := math.Abs(r.X - offX)
			assert.Less(t, quartErr, quadErr, "sigma=%g off=%g", sigma, offX)
			assert.InDelta(t, offX, r.X, 0.01, "sigma=%g off=%g", sigma, offX)
			assert.InDelta(t, offY, r.Y, 0.01, "sigma=%g off=%g", sigma, offX)
		}
	}
}

func TestRefineQuick_Edge(t *testing.T) {
	mi := gaussianImage(9, 9, 4, 4, 100, 1.5, 0, 1)

	for _, p := range [][2]int{{0, 4}, {4, 0}, {8, 4}, {4, 8}, {-3, 4}} {
		_, err := RefineQuick(mi, p[0], p[1], false)
		assert.ErrorIs(t, err, ErrEdge, "pixel %v", p)
	}

	_, err := RefineQuick(mi, 1, 1, false)
	assert.NotErrorIs(t, err, ErrEdge)
}
