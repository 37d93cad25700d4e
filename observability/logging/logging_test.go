package logging

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetupRenamesKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := setup("ratemintd", "test", &buf)
	logger.Info("started", "component", "host")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "started", line["message"])
	require.Equal(t, "INFO", line["severity"])
	require.Equal(t, "ratemintd", line["service"])
	require.Equal(t, "test", line["env"])
	require.Equal(t, "host", line["component"])
	require.Contains(t, line, "timestamp")
}

func TestWriterForFile(t *testing.T) {
	require.NotNil(t, writerFor(nil))
	w := writerFor(&FileConfig{Path: filepath.Join(t.TempDir(), "node.log"), MaxSizeMB: 1})
	_, err := w.Write([]byte("{}\n"))
	require.NoError(t, err)
}

func TestMaskField(t *testing.T) {
	require.Equal(t, RedactedValue, MaskField("token", "secret").Value.String())
	require.Equal(t, "abc", MaskField("request_id", "abc").Value.String())
	require.Equal(t, " ", MaskField("token", " ").Value.String())
	require.Equal(t, "Bearer x", MaskField(" Request_ID ", "Bearer x").Value.String())
	require.Equal(t, "Auth_Token", MaskField("Auth_Token", "secret").Key)
}
