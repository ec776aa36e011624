package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoadYAML(t *testing.T) {
	p := writeTempFile(t, t.TempDir(), "cfg.yaml", "addr: :9999\nmodel_id: org/m\ncache_dir: /tmp/c\ndevice: cpu\nmax_new_tokens: 128\nruntime_args: [\"--threads\", \"4\"]\ncors_enabled: true\n")
	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Addr)
	assert.Equal(t, "org/m", cfg.ModelID)
	assert.Equal(t, "/tmp/c", cfg.CacheDir)
	assert.Equal(t, "cpu", cfg.Device)
	assert.Equal(t, 128, cfg.MaxNewTokens)
	assert.True(t, cfg.CORSEnabled)
	assert.Equal(t, []string{"--threads", "4"}, cfg.RuntimeArgs)
}

func TestLoadJSON(t *testing.T) {
	p := writeTempFile(t, t.TempDir(), "cfg.json", `{"addr":":7070","runtime_url":"http://127.0.0.1:9000","max_queue_depth":4,"infer_timeout_seconds":60,"eager_load":true}`)
	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Addr)
	assert.Equal(t, "http://127.0.0.1:9000", cfg.RuntimeURL)
	assert.EqualValues(t, 4, cfg.MaxQueueDepth)
	assert.EqualValues(t, 60, cfg.InferTimeoutSeconds)
	assert.True(t, cfg.EagerLoad)
}

func TestLoadTOML(t *testing.T) {
	p := writeTempFile(t, t.TempDir(), "cfg.toml", "addr=\":8081\"\nrevision=\"v2\"\nlog_format=\"json\"\nmax_body_bytes=1024\n")
	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, ":8081", cfg.Addr)
	assert.Equal(t, "v2", cfg.Revision)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.EqualValues(t, 1024, cfg.MaxBodyBytes)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load("")
	assert.Error(t, err, "empty path")

	d := t.TempDir()
	_, err = Load(writeTempFile(t, d, "cfg.txt", "not supported"))
	assert.Error(t, err, "unsupported extension")

	_, err = Load("/definitely/not/a/real/file-12345.yaml")
	assert.Error(t, err, "missing file")

	for name, body := range map[string]string{
		"bad.yaml": "addr: :8080\n: broken\n",
		"bad.json": `{ "addr": ":8080", "model_id": }`,
		"bad.toml": "addr=:8080\nmodel_id\n",
	} {
		_, err := Load(writeTempFile(t, d, name, body))
		assert.Error(t, err, name)
	}
}
