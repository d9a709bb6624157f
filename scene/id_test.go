package scene

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIDGeneratorNew(t *testing.T) {
	t.Run("returns sequential ids", func(t *testing.T) {
		var ids IDGenerator

		for i := 1; i <= 5; i++ {
			require.Equal(t, uint32(i), ids.New())
		}
	})

	t.Run("returns released ids first", func(t *testing.T) {
		var ids IDGenerator

		for i := 1; i <= 5; i++ {
			ids.New()
		}

		ids.Release(2)
		ids.Release(4)
		require.Equal(t, uint32(4), ids.New())
		require.Equal(t, uint32(2), ids.New())
		require.Equal(t, uint32(6), ids.New())
	})
}
