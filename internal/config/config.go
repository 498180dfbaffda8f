// Package config loads the worksync configuration: a YAML file validated
// against an embedded CUE schema before anything touches the engine, so a
// typo'd entity name or a zero shard count fails at startup with a precise
// message instead of surfacing mid-merge.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueyaml "cuelang.org/go/encoding/yaml"
	"gopkg.in/yaml.v3"

	"github.com/tberndt/worksync/internal/record"
)

//go:embed schema.cue
var schemaCUE string

// QuotaGrant is a yearly allowance applied to every owner.
type QuotaGrant struct {
	Kind string `yaml:"kind"`
	Days int    `yaml:"days"`
}

// Config is the validated worksync configuration.
type Config struct {
	StorePath          string       `yaml:"store_path"`
	LockShards         int          `yaml:"lock_shards"`
	AmbiguityThreshold int          `yaml:"ambiguity_threshold"`
	Entities           []string     `yaml:"entities"`
	Quotas             []QuotaGrant `yaml:"quotas"`
}

// LoadError reports a configuration problem with its source context.
type LoadError struct {
	Path    string
	Message string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Path, e.Message)
}

// Load reads, schema-validates and decodes a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Message: err.Error()}
	}
	return Parse(path, data)
}

// Parse validates raw YAML against the CUE schema and decodes it.
// path is used for error messages only.
func Parse(path string, data []byte) (*Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE)
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile config schema: %w", err)
	}
	configDef := schema.LookupPath(cue.ParsePath("#Config"))
	if err := configDef.Err(); err != nil {
		return nil, fmt.Errorf("lookup config schema: %w", err)
	}

	file, err := cueyaml.Extract(path, data)
	if err != nil {
		return nil, &LoadError{Path: path, Message: fmt.Sprintf("parse yaml: %v", err)}
	}
	val := ctx.BuildFile(file)
	if err := val.Err(); err != nil {
		return nil, &LoadError{Path: path, Message: fmt.Sprintf("build yaml: %v", err)}
	}

	unified := configDef.Unify(val)
	if err := unified.Validate(cue.Final()); err != nil {
		return nil, &LoadError{Path: path, Message: err.Error()}
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &LoadError{Path: path, Message: fmt.Sprintf("decode yaml: %v", err)}
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// WithDefaults fills unset fields with their defaults and returns c.
// Load applies it automatically; it is for configs built in code.
func (c *Config) WithDefaults() *Config {
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.LockShards == 0 {
		c.LockShards = 64
	}
	if c.AmbiguityThreshold == 0 {
		c.AmbiguityThreshold = 2
	}
	if len(c.Entities) == 0 {
		for _, e := range record.Entities() {
			c.Entities = append(c.Entities, string(e))
		}
	}
}

// EntityTypes returns the enabled entities as typed values. The schema
// already constrained the names, so this cannot fail after Parse.
func (c *Config) EntityTypes() []record.EntityType {
	out := make([]record.EntityType, 0, len(c.Entities))
	for _, e := range c.Entities {
		out = append(out, record.EntityType(e))
	}
	return out
}
