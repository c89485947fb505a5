package panel

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestElements(t *testing.T) {
	ids := Elements()
	require.Len(t, ids, 10)
	require.Contains(t, ids, ConfirmModal)

	ids[0] = "changed"
	require.Equal(t, CameraStartButton, Elements()[0])
}

func TestParentOf(t *testing.T) {
	parent, ok := ParentOf(ConfirmYes)
	require.True(t, ok)
	require.Equal(t, ConfirmModal, parent)

	_, ok = ParentOf(AlarmButton)
	require.False(t, ok)
}
