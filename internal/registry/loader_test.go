package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestSnapshotScannerScan(t *testing.T) {
	dir := t.TempDir()
	snap := filepath.Join(dir, "models--onnx-community--granite-docling-258M-ONNX", "snapshots", "main")
	writeFile(t, filepath.Join(snap, "config.json"), "{}")
	writeFile(t, filepath.Join(snap, "onnx", "embed_tokens_fp16.onnx_data"), "1234")
	writeFile(t, filepath.Join(snap, "onnx", "vision_encoder.onnx_data"), "12")
	writeFile(t, filepath.Join(snap, "onnx", "decoder_model_merged.onnx_data.partial"), "xxxxxxxx")
	writeFile(t, filepath.Join(dir, "models--org--other", "snapshots", "v1", "config.json"), "{}")
	// not a snapshot repo
	writeFile(t, filepath.Join(dir, "stray.txt"), "x")

	models, err := NewSnapshotScanner("onnx-community/granite-docling-258M-ONNX").Scan(dir)
	require.NoError(t, err)
	require.Len(t, models, 2)

	m := models[0]
	assert.Equal(t, "onnx-community/granite-docling-258M-ONNX", m.ID)
	assert.Equal(t, "main", m.Revision)
	assert.True(t, m.Active)
	// partial downloads are skipped
	assert.Equal(t, 3, m.Files)
	assert.EqualValues(t, 8, m.SizeBytes)
	assert.Equal(t, []string{"fp16", "fp32"}, m.Precisions)

	assert.Equal(t, "org/other", models[1].ID)
	assert.False(t, models[1].Active)
}

func TestSnapshotScannerMissingDir(t *testing.T) {
	models, err := NewSnapshotScanner("").Scan(filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	assert.Empty(t, models)
}

func TestSnapshotScannerExpandHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	writeFile(t, filepath.Join(home, "cache", "models--a--b", "snapshots", "main", "config.json"), "{}")

	models, err := NewSnapshotScanner("a/b").Scan("~/cache")
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.Equal(t, "a/b", models[0].ID)
}
