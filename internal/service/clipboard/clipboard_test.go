package clipboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryKeepsLastText(t *testing.T) {
	var m Memory
	assert.Empty(t, m.Text())

	require.NoError(t, m.WriteText("first"))
	require.NoError(t, m.WriteText("second"))
	assert.Equal(t, "second", m.Text())
}

func TestDetectMatchesAvailability(t *testing.T) {
	clip, system := Detect()
	require.NotNil(t, clip)
	assert.Equal(t, System{}.Available(), system)
	if system {
		assert.IsType(t, System{}, clip)
		return
	}
	require.IsType(t, &Memory{}, clip)
	require.NoError(t, clip.WriteText("copied"))
	assert.Equal(t, "copied", clip.(*Memory).Text())
}
