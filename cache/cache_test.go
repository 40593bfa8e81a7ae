package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unit(x, y float32) []float32 { return []float32{x, y} }

func TestLookupHitAboveThreshold(t *testing.T) {
	c := New(Config{})
	c.Put("điểm chuẩn hvktqs", unit(1, 0), "answer-a")

	hit := c.Lookup("diem chuan hoc vien ktqs", unit(1, 0))
	require.NotNil(t, hit)
	assert.Equal(t, "answer-a", hit.Response)
	assert.GreaterOrEqual(t, hit.Similarity, DefaultThreshold)
	assert.Equal(t, "điểm chuẩn hvktqs", hit.OriginalQuery)
}

func TestLookupMissBelowThreshold(t *testing.T) {
	c := New(Config{})
	c.Put("a", unit(1, 0), "answer-a")

	// cos = 0.8 < 0.92
	assert.Nil(t, c.Lookup("b", unit(0.8, 0.6)))
}

func TestIdenticalQueryReturnsSameAnswer(t *testing.T) {
	c := New(Config{})
	c.Put("tiêu chuẩn sức khỏe", unit(0, 1), map[string]string{"answer": "Điều 4"})

	first := c.Lookup("tiêu chuẩn sức khỏe", unit(0, 1))
	second := c.Lookup("tiêu chuẩn sức khỏe", unit(0, 1))
	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.Equal(t, first.Response, second.Response)
}

func TestTTLExpiry(t *testing.T) {
	c := New(Config{TTL: time.Hour})
	base := time.Now()
	c.now = func() time.Time { return base }
	c.Put("q", unit(1, 0), "stale")

	// Within TTL the entry is returned
	c.now = func() time.Time { return base.Add(30 * time.Minute) }
	assert.NotNil(t, c.Lookup("other phrasing", unit(1, 0)))

	// Past TTL it is never returned and gets dropped
	c.now = func() time.Time { return base.Add(2 * time.Hour) }
	assert.Nil(t, c.Lookup("other phrasing", unit(1, 0)))
	assert.Zero(t, c.Len())
}

func TestEvictsOldestWhenFull(t *testing.T) {
	c := New(Config{MaxEntries: 3})
	for i := 0; i < 3; i++ {
		c.Put(fmt.Sprintf("q%d", i), unit(1, 0), i)
	}
	c.Put("q3", unit(1, 0), 3)

	assert.Equal(t, 3, c.Len())
	// The oldest semantic entry (q0) is gone; the best match now is the
	// newest insert.
	hit := c.Lookup("anything aligned", unit(1, 0))
	require.NotNil(t, hit)
	assert.NotEqual(t, 0, hit.Response)
}
