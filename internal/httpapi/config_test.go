package httpapi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"doclingd/internal/config"
)

func TestConfigureNormalizes(t *testing.T) {
	defer Configure(Options{})

	Configure(Options{MaxBodyBytes: -1, InferTimeout: -time.Second})
	assert.Equal(t, DefaultMaxBodyBytes, opts.MaxBodyBytes)
	assert.Zero(t, opts.InferTimeout)

	Configure(Options{MaxBodyBytes: 1234, InferTimeout: 3 * time.Second})
	assert.EqualValues(t, 1234, opts.MaxBodyBytes)
	assert.Equal(t, 3*time.Second, opts.InferTimeout)
}

func TestConfigureCopiesCORSLists(t *testing.T) {
	defer Configure(Options{})
	origins := []string{"a"}
	Configure(Options{CORS: CORSOptions{Enabled: true, Origins: origins}})
	origins[0] = "b"
	assert.True(t, opts.CORS.Enabled)
	assert.Equal(t, []string{"a"}, opts.CORS.Origins)
}

func TestOptionsFromConfig(t *testing.T) {
	c := config.Defaults()
	c.MaxBodyBytes = 1 << 20
	c.InferTimeoutSeconds = 90
	c.CORSEnabled = true
	c.CORSAllowedOrigins = []string{"https://app.example"}

	o := OptionsFromConfig(c)
	assert.EqualValues(t, 1<<20, o.MaxBodyBytes)
	assert.Equal(t, 90*time.Second, o.InferTimeout)
	assert.True(t, o.CORS.Enabled)
	assert.Equal(t, []string{"https://app.example"}, o.CORS.Origins)
}
