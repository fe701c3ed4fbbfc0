package sensor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errChecksum = errors.New("checksum mismatch")

// flakyReader fails a fixed number of reads per pin before succeeding.
type flakyReader struct {
	failures map[int]int
	values   map[int][2]float64
	calls    map[int]int
}

func (r *flakyReader) Read(ctx context.Context, pin int) (float64, float64, error) {
	if r.calls == nil {
		r.calls = make(map[int]int)
	}
	r.calls[pin]++
	if r.calls[pin] <= r.failures[pin] {
		return 0, 0, errChecksum
	}
	v, ok := r.values[pin]
	if !ok {
		return 0, 0, errChecksum
	}
	return v[0], v[1], nil
}

func TestAcquire(t *testing.T) {
	t.Run("succeeds after transient failures", func(t *testing.T) {
		reader := &flakyReader{
			failures: map[int]int{2: 3},
			values:   map[int][2]float64{2: {22.46, 61.34}},
		}
		a := NewAcquirer(reader, 5, nil)
		r := a.Acquire(context.Background(), Channel{Pin: 2, Name: "garden"})
		require.True(t, r.Valid())
		assert.Equal(t, 22.5, r.Temperature)
		assert.Equal(t, 61.3, r.Humidity)
		assert.Equal(t, 4, reader.calls[2])
	})
	t.Run("exhausted retries yield sentinel", func(t *testing.T) {
		reader := &flakyReader{
			failures: map[int]int{2: 100},
		}
		a := NewAcquirer(reader, 5, nil)
		r := a.Acquire(context.Background(), Channel{Pin: 2, Name: "garden"})
		assert.False(t, r.Valid())
		assert.ErrorIs(t, r.Err, ErrReadFailed)
		assert.True(t, math.IsNaN(r.Temperature))
		assert.True(t, math.IsNaN(r.Humidity))
		assert.Equal(t, 5, reader.calls[2])
	})
	t.Run("rounds to one decimal", func(t *testing.T) {
		reader := &flakyReader{
			values: map[int][2]float64{4: {19.049999, 55.54}},
		}
		a := NewAcquirer(reader, 1, nil)
		r := a.Acquire(context.Background(), Channel{Pin: 4, Name: "loundry"})
		require.True(t, r.Valid())
		assert.Equal(t, 19.0, r.Temperature)
		assert.Equal(t, 55.5, r.Humidity)
	})
}

func TestAcquireAll(t *testing.T) {
	channels := []Channel{
		{Pin: 2, Name: "garden"},
		{Pin: 3, Name: "taras"},
		{Pin: 4, Name: "loundry"},
		{Pin: 17, Name: "front"},
	}
	reader := &flakyReader{
		failures: map[int]int{4: 100},
		values: map[int][2]float64{
			2:  {22.5, 61.3},
			3:  {19.0, 55.5},
			17: {17.8, 70.2},
		},
	}
	a := NewAcquirer(reader, 3, nil)
	batch := a.AcquireAll(context.Background(), channels)
	require.Len(t, batch, len(channels))
	for i, ch := range channels {
		assert.Equal(t, ch.Name, batch[i].Channel.Name)
	}
	assert.True(t, batch[0].Valid())
	assert.True(t, batch[1].Valid())
	assert.False(t, batch[2].Valid())
	assert.True(t, batch[3].Valid())
	// the failing channel must not shift the positions of the others
	assert.Equal(t, 19.0, batch[1].Temperature)
	assert.Equal(t, 17.8, batch[3].Temperature)
}

func TestFormatValue(t *testing.T) {
	t.Run("one decimal digit", func(t *testing.T) {
		for _, v := range []float64{22.5, -3.25, 0, 100, 17.84} {
			t.Run(fmt.Sprintf("%v", v), func(t *testing.T) {
				s := FormatValue(v)
				assert.Regexp(t, `^-?\d+\.\d$`, s)
			})
		}
	})
	t.Run("values", func(t *testing.T) {
		assert.Equal(t, "22.5", FormatValue(22.5))
		assert.Equal(t, "19.0", FormatValue(19.0))
		assert.Equal(t, "-0.5", FormatValue(-0.5))
	})
	t.Run("sentinel", func(t *testing.T) {
		assert.Equal(t, "NaN", FormatValue(math.NaN()))
	})
}
