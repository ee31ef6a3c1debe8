// Package config loads and validates the endpoint configuration file.
// The core pipeline receives fully resolved Endpoint values and never reads
// configuration or credential files itself.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/remerge-dev/remerge/internal/protocol"
)

// Defaults applied to endpoint fields left unset.
const (
	DefaultTimeout  = 600 * time.Second
	DefaultRetries  = 100
	DefaultDelay    = 10 * time.Second
	DefaultMaxDelay = 600 * time.Second
)

// forbiddenNameChars may not appear in endpoint or variant names; they are
// reserved for attribution lines in rewritten files.
const forbiddenNameChars = "()|,"

// Duration is a time.Duration that unmarshals from either a Go duration
// string ("90s", "2m") or a bare number of seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(v)
		return nil
	}
	var secs float64
	if err := node.Decode(&secs); err != nil {
		return fmt.Errorf("invalid duration value on line %d", node.Line)
	}
	*d = Duration(time.Duration(secs * float64(time.Second)))
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// ContextOptions tune how prompts are built. Pointer fields distinguish
// "unset" from "false" so endpoint- and variant-level settings can be
// checked for conflicts.
type ContextOptions struct {
	NoDiff          *bool `yaml:"noDiff,omitempty"`
	WithUserMessage *bool `yaml:"withUserMessage,omitempty"`
}

// Sampling holds the per-variant sampling overrides. Set fields are merged
// into the request body on top of the JSON override mappings.
type Sampling struct {
	Temperature     *float64 `yaml:"temperature,omitempty"`
	TopP            *float64 `yaml:"topP,omitempty"`
	TopK            *int     `yaml:"topK,omitempty"`
	MinP            *float64 `yaml:"minP,omitempty"`
	ReasoningEffort string   `yaml:"reasoningEffort,omitempty"`
}

// DefaultVariantName is used when a variant (or an endpoint without any
// variants) has no explicit name.
const DefaultVariantName = "default"

// Variant is one named parameter configuration of an endpoint. Every
// variant produces one independent query per hunk.
type Variant struct {
	Name     string          `yaml:"name,omitempty"`
	Context  *ContextOptions `yaml:"context,omitempty"`
	JSON     map[string]any  `yaml:"json,omitempty"`
	Sampling Sampling        `yaml:",inline"`
}

// Endpoint describes one backend. Read-only once loaded; safely shared
// across all concurrent queries.
type Endpoint struct {
	Name string        `yaml:"name"`
	URL  string        `yaml:"url"`
	Kind protocol.Kind `yaml:"type"`

	APIKey     string            `yaml:"apiKey,omitempty"`
	APIKeyFile string            `yaml:"apiKeyFile,omitempty"`
	Headers    map[string]string `yaml:"headers,omitempty"`

	// Model is merged into every request body as the "model" field unless
	// a JSON override already sets one.
	Model string `yaml:"model,omitempty"`

	// JSON is the baseline override mapping merged into every request.
	JSON map[string]any `yaml:"json,omitempty"`

	// RootCertificatePEM is a path to a custom root certificate for this
	// endpoint; resolved into RootCAPEM at load time.
	RootCertificatePEM string `yaml:"rootCertificatePEM,omitempty"`
	RootCAPEM          []byte `yaml:"-"`

	Timeout  Duration `yaml:"timeout,omitempty"`
	Retries  int      `yaml:"retries,omitempty"`
	Delay    Duration `yaml:"delay,omitempty"`
	MaxDelay Duration `yaml:"maxDelay,omitempty"`

	// Wait is the minimum spacing between consecutive request starts to
	// this endpoint. Endpoints never pace each other.
	Wait Duration `yaml:"wait,omitempty"`

	NoChat  bool            `yaml:"noChat,omitempty"`
	Context *ContextOptions `yaml:"context,omitempty"`

	Variants []Variant `yaml:"variants,omitempty"`
}

// EffectiveVariants returns the configured variants, or the single implicit
// default variant when none are configured. Unnamed variants get the
// default name.
func (e *Endpoint) EffectiveVariants() []Variant {
	if len(e.Variants) == 0 {
		return []Variant{{Name: DefaultVariantName}}
	}
	out := make([]Variant, len(e.Variants))
	copy(out, e.Variants)
	for i := range out {
		if out[i].Name == "" {
			out[i].Name = DefaultVariantName
		}
	}
	return out
}

// Config is the validated endpoint set.
type Config struct {
	Endpoints []Endpoint `yaml:"endpoints"`

	// SyntaxCheck enables the advisory tree-sitter check on candidates.
	SyntaxCheck bool `yaml:"syntaxCheck,omitempty"`
}

// Load reads, parses and validates a configuration file, resolving key
// files and root certificates so downstream consumers only see ready-to-use
// values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	for i := range cfg.Endpoints {
		if err := resolveSecrets(&cfg.Endpoints[i], filepath.Dir(path)); err != nil {
			return nil, fmt.Errorf("config: %s: endpoint %q: %w", path, cfg.Endpoints[i].Name, err)
		}
	}
	return cfg, nil
}

// Parse parses and validates raw configuration bytes without touching the
// filesystem. Key files and certificates stay unresolved.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if len(cfg.Endpoints) == 0 {
		return nil, fmt.Errorf("no endpoints configured")
	}

	seen := make(map[string]bool)
	for i := range cfg.Endpoints {
		ep := &cfg.Endpoints[i]
		ep.Name = strings.TrimSpace(ep.Name)
		ep.URL = strings.TrimSpace(ep.URL)
		applyDefaults(ep)
		if err := validateEndpoint(ep, i); err != nil {
			return nil, err
		}
		if seen[ep.Name] {
			return nil, fmt.Errorf("endpoint %d: duplicate name %q", i, ep.Name)
		}
		seen[ep.Name] = true
	}
	return &cfg, nil
}

func applyDefaults(ep *Endpoint) {
	if ep.Timeout == 0 {
		ep.Timeout = Duration(DefaultTimeout)
	}
	if ep.Retries == 0 {
		ep.Retries = DefaultRetries
	}
	if ep.Delay == 0 {
		ep.Delay = Duration(DefaultDelay)
	}
	if ep.MaxDelay == 0 {
		ep.MaxDelay = Duration(DefaultMaxDelay)
	}
}

func validateEndpoint(ep *Endpoint, i int) error {
	if ep.Name == "" {
		return fmt.Errorf("endpoint %d: empty name", i)
	}
	if strings.ContainsAny(ep.Name, forbiddenNameChars) {
		return fmt.Errorf("endpoint %d: name %q contains one of %q", i, ep.Name, forbiddenNameChars)
	}
	if ep.URL == "" {
		return fmt.Errorf("endpoint %q: empty url", ep.Name)
	}
	if !ep.Kind.Valid() {
		return fmt.Errorf("endpoint %q: unknown type %q", ep.Name, ep.Kind)
	}
	if ep.APIKey != "" && ep.APIKeyFile != "" {
		return fmt.Errorf("endpoint %q: apiKey and apiKeyFile are mutually exclusive", ep.Name)
	}

	seenNames := make(map[string]bool)
	for j := range ep.Variants {
		v := &ep.Variants[j]
		v.Name = strings.TrimSpace(v.Name)
		name := v.Name
		if name == "" {
			name = DefaultVariantName
		}
		if strings.ContainsAny(name, forbiddenNameChars) {
			return fmt.Errorf("endpoint %q: variant %d: name %q contains one of %q", ep.Name, j, name, forbiddenNameChars)
		}
		if seenNames[name] {
			return fmt.Errorf("endpoint %q: duplicate variant name %q", ep.Name, name)
		}
		seenNames[name] = true

		for key := range v.JSON {
			if _, dup := ep.JSON[key]; dup {
				return fmt.Errorf("endpoint %q: variant %q: json key %q set at both endpoint and variant level", ep.Name, name, key)
			}
		}
		if err := checkContextConflict(ep.Context, v.Context); err != nil {
			return fmt.Errorf("endpoint %q: variant %q: %w", ep.Name, name, err)
		}
	}
	return nil
}

// checkContextConflict rejects a context field configured at both the
// endpoint and variant level; the override relation between the two would
// be ambiguous.
func checkContextConflict(ec, vc *ContextOptions) error {
	if ec == nil || vc == nil {
		return nil
	}
	if ec.NoDiff != nil && vc.NoDiff != nil {
		return fmt.Errorf("noDiff set at both endpoint and variant level")
	}
	if ec.WithUserMessage != nil && vc.WithUserMessage != nil {
		return fmt.Errorf("withUserMessage set at both endpoint and variant level")
	}
	return nil
}

// resolveSecrets reads the endpoint's key file and root certificate so the
// dispatch path only ever handles ready-to-use values. Relative paths are
// resolved against the config file's directory.
func resolveSecrets(ep *Endpoint, baseDir string) error {
	if ep.APIKeyFile != "" {
		data, err := os.ReadFile(resolvePath(ep.APIKeyFile, baseDir))
		if err != nil {
			return fmt.Errorf("read api key file: %w", err)
		}
		ep.APIKey = strings.TrimSpace(string(data))
		ep.APIKeyFile = ""
	}
	if ep.RootCertificatePEM != "" {
		data, err := os.ReadFile(resolvePath(ep.RootCertificatePEM, baseDir))
		if err != nil {
			return fmt.Errorf("read root certificate: %w", err)
		}
		ep.RootCAPEM = data
	}
	return nil
}

func resolvePath(path, baseDir string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// EffectiveOptions merges endpoint- and variant-level context options.
// Validation guarantees at most one level sets each field.
func EffectiveOptions(ep *Endpoint, v *Variant) (noDiff, withUserMessage bool) {
	read := func(c *ContextOptions) {
		if c == nil {
			return
		}
		if c.NoDiff != nil {
			noDiff = *c.NoDiff
		}
		if c.WithUserMessage != nil {
			withUserMessage = *c.WithUserMessage
		}
	}
	read(ep.Context)
	read(v.Context)
	return noDiff, withUserMessage
}
