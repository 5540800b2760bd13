//go:build !release

package assert

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestThat(t *testing.T) {
	t.Parallel()

	assert.NotPanics(t, func() { That(true, "never") })
	assert.PanicsWithValue(t, "assertion failed: entity 7 missing", func() {
		That(false, "entity %d missing", 7)
	})
}
