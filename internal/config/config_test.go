package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remerge-dev/remerge/internal/protocol"
)

const minimalYAML = `
endpoints:
  - name: gpt
    type: openai
    url: https://api.example.com/v1/chat/completions
`

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)
	require.Len(t, cfg.Endpoints, 1)

	ep := cfg.Endpoints[0]
	assert.Equal(t, "gpt", ep.Name)
	assert.Equal(t, protocol.KindOpenAI, ep.Kind)
	assert.Equal(t, DefaultTimeout, ep.Timeout.Std())
	assert.Equal(t, DefaultRetries, ep.Retries)
	assert.Equal(t, DefaultDelay, ep.Delay.Std())
	assert.Equal(t, DefaultMaxDelay, ep.MaxDelay.Std())
	assert.Equal(t, time.Duration(0), ep.Wait.Std())
}

func TestParse_DurationForms(t *testing.T) {
	cfg, err := Parse([]byte(`
endpoints:
  - name: a
    type: openai
    url: http://x
    timeout: 90s
    delay: 2.5
    wait: 1m
`))
	require.NoError(t, err)

	ep := cfg.Endpoints[0]
	assert.Equal(t, 90*time.Second, ep.Timeout.Std())
	assert.Equal(t, 2500*time.Millisecond, ep.Delay.Std())
	assert.Equal(t, time.Minute, ep.Wait.Std())
}

func TestParse_InvalidDuration(t *testing.T) {
	_, err := Parse([]byte(`
endpoints:
  - name: a
    type: openai
    url: http://x
    timeout: soon
`))
	assert.Error(t, err)
}

func TestParse_NoEndpoints(t *testing.T) {
	_, err := Parse([]byte(`endpoints: []`))
	assert.Error(t, err)
}

func TestParse_DuplicateEndpointName(t *testing.T) {
	_, err := Parse([]byte(`
endpoints:
  - name: a
    type: openai
    url: http://x
  - name: a
    type: anthropic
    url: http://y
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate name")
}

func TestParse_ForbiddenNameChars(t *testing.T) {
	for _, name := range []string{"a(b", "a)b", "a|b", "a,b"} {
		_, err := Parse([]byte(`
endpoints:
  - name: "` + name + `"
    type: openai
    url: http://x
`))
		assert.Error(t, err, "name %q should be rejected", name)
	}
}

func TestParse_UnknownType(t *testing.T) {
	_, err := Parse([]byte(`
endpoints:
  - name: a
    type: grpc
    url: http://x
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown type")
}

func TestParse_KeyAndKeyFileExclusive(t *testing.T) {
	_, err := Parse([]byte(`
endpoints:
  - name: a
    type: openai
    url: http://x
    apiKey: k
    apiKeyFile: f
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mutually exclusive")
}

func TestParse_Variants(t *testing.T) {
	cfg, err := Parse([]byte(`
endpoints:
  - name: a
    type: openai
    url: http://x
    variants:
      - name: hot
        temperature: 0.9
        topP: 0.95
      - json:
          seed: 7
`))
	require.NoError(t, err)

	vars := cfg.Endpoints[0].EffectiveVariants()
	require.Len(t, vars, 2)
	assert.Equal(t, "hot", vars[0].Name)
	require.NotNil(t, vars[0].Sampling.Temperature)
	assert.Equal(t, 0.9, *vars[0].Sampling.Temperature)
	assert.Equal(t, DefaultVariantName, vars[1].Name)
	assert.Equal(t, 7, vars[1].JSON["seed"])
}

func TestParse_DuplicateVariantName(t *testing.T) {
	_, err := Parse([]byte(`
endpoints:
  - name: a
    type: openai
    url: http://x
    variants:
      - name: v
      - name: v
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate variant name")
}

func TestParse_JSONKeyConflict(t *testing.T) {
	_, err := Parse([]byte(`
endpoints:
  - name: a
    type: openai
    url: http://x
    json:
      seed: 1
    variants:
      - name: v
        json:
          seed: 2
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "both endpoint and variant level")
}

func TestParse_ContextConflict(t *testing.T) {
	_, err := Parse([]byte(`
endpoints:
  - name: a
    type: openai
    url: http://x
    context:
      noDiff: true
    variants:
      - name: v
        context:
          noDiff: false
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "noDiff set at both")
}

func TestEffectiveVariants_Implicit(t *testing.T) {
	ep := Endpoint{Name: "a"}
	vars := ep.EffectiveVariants()
	require.Len(t, vars, 1)
	assert.Equal(t, DefaultVariantName, vars[0].Name)
}

func TestEffectiveOptions(t *testing.T) {
	yes := true
	ep := &Endpoint{Context: &ContextOptions{NoDiff: &yes}}
	v := &Variant{Context: &ContextOptions{WithUserMessage: &yes}}

	noDiff, withUser := EffectiveOptions(ep, v)
	assert.True(t, noDiff)
	assert.True(t, withUser)

	noDiff, withUser = EffectiveOptions(&Endpoint{}, &Variant{})
	assert.False(t, noDiff)
	assert.False(t, withUser)
}

func TestLoad_ResolvesKeyFileAndCert(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "key.txt"), []byte("secret\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ca.pem"), []byte("PEM DATA"), 0o600))

	cfgPath := filepath.Join(dir, "remerge.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
endpoints:
  - name: a
    type: patchpal
    url: https://x
    apiKeyFile: key.txt
    rootCertificatePEM: ca.pem
`), 0o600))

	cfg, err := Load(cfgPath)
	require.NoError(t, err)

	ep := cfg.Endpoints[0]
	assert.Equal(t, "secret", ep.APIKey)
	assert.Empty(t, ep.APIKeyFile)
	assert.Equal(t, []byte("PEM DATA"), ep.RootCAPEM)
}

func TestLoad_MissingKeyFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "remerge.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
endpoints:
  - name: a
    type: openai
    url: https://x
    apiKeyFile: nope.txt
`), 0o600))

	_, err := Load(cfgPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api key file")
}
