package confidence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.0, Clamp(-0.2))
	assert.Equal(t, 0.82, Clamp(0.82))
	assert.Equal(t, 1.0, Clamp(1.7))
	assert.Less(t, Heuristic, 1.0)
	assert.Equal(t, 0.0, None)
}
