package endpoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequenceIsACopy(t *testing.T) {
	pool := NewPool(Profile{
		Name:      "test",
		Endpoints: []string{"a", "b", "c"},
	})

	seq := pool.Sequence()
	assert.Equal(t, []string{"a", "b", "c"}, seq)

	seq[0] = "mutated"
	assert.Equal(t, []string{"a", "b", "c"}, pool.Sequence())
	assert.Equal(t, 3, pool.Len())
}
