package pipeline

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/andresmejia3/facewatch/internal/vision"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeadlessLogsOnlyChanges(t *testing.T) {
	var buf bytes.Buffer
	h := &Headless{Log: slog.New(slog.NewTextHandler(&buf, nil))}

	alice := []vision.Match{{Label: "alice"}}
	require.NoError(t, h.Show(nil, alice))
	require.NoError(t, h.Show(nil, alice))
	require.NoError(t, h.Show(nil, []vision.Match{{Label: vision.Unknown}}))

	assert.Equal(t, 2, strings.Count(buf.String(), "faces in view"))
	assert.False(t, h.Quit())
	assert.NoError(t, h.Close())
}
