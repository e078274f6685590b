// Package config loads client connection settings from HCL, following
// the parsing conventions of pkg/vinculum/config: hclparse for reading
// files, gohcl for decoding into a typed struct, and go-cty for
// evaluating duration/expression fields that accept either a literal
// string or a computed value.
package config

import (
	"fmt"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/tsarna/rosbridge/pkg/rosbridge/reconnect"
)

// Settings is the decoded form of a `client { ... }` HCL block: the
// connection settings a caller would otherwise have to wire up by hand
// through client.Builder.
type Settings struct {
	URL            string            `hcl:"url"`
	Codec          string            `hcl:"codec,optional"`
	DialTimeout    hcl.Expression    `hcl:"dial_timeout,optional"`
	DefaultTimeout hcl.Expression    `hcl:"default_timeout,optional"`
	Headers        map[string]string `hcl:"headers,optional"`
	Reconnect      *ReconnectBlock   `hcl:"reconnect,block"`
	DefRange       hcl.Range         `hcl:",def_range"`
}

// ReconnectBlock is the optional `reconnect { ... }` nested block. Any
// field left unset falls back to reconnect.DefaultConfig().
type ReconnectBlock struct {
	Enabled      *bool          `hcl:"enabled,optional"`
	InitialDelay hcl.Expression `hcl:"initial_delay,optional"`
	MaxDelay     hcl.Expression `hcl:"max_delay,optional"`
	Multiplier   *float64       `hcl:"multiplier,optional"`
	JitterRatio  *float64       `hcl:"jitter_ratio,optional"`
}

type rootSchema struct {
	Client Settings `hcl:"client,block"`
}

// LoadFile parses one HCL file at path and decodes its single required
// `client` block.
func LoadFile(path string) (*Settings, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("config: parse %s: %w", path, diags)
	}
	return decode(file.Body)
}

// LoadBytes parses HCL source held in memory, with filename used only
// for diagnostic messages.
func LoadBytes(src []byte, filename string) (*Settings, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("config: parse %s: %w", filename, diags)
	}
	return decode(file.Body)
}

func decode(body hcl.Body) (*Settings, error) {
	var root rootSchema
	evalCtx := &hcl.EvalContext{}
	if diags := gohcl.DecodeBody(body, evalCtx, &root); diags.HasErrors() {
		return nil, fmt.Errorf("config: decode: %w", diags)
	}
	return &root.Client, nil
}

// DialTimeoutOrDefault evaluates the DialTimeout expression, returning
// def if the field was never set in the source.
func (s *Settings) DialTimeoutOrDefault(def time.Duration) (time.Duration, error) {
	return evalDuration(s.DialTimeout, def)
}

// DefaultTimeoutOrDefault evaluates the DefaultTimeout expression,
// returning def if the field was never set in the source.
func (s *Settings) DefaultTimeoutOrDefault(def time.Duration) (time.Duration, error) {
	return evalDuration(s.DefaultTimeout, def)
}

// ReconnectConfig materializes a reconnect.Config from the optional
// nested block, layered over reconnect.DefaultConfig().
func (s *Settings) ReconnectConfig() (reconnect.Config, error) {
	cfg := reconnect.DefaultConfig()
	if s.Reconnect == nil {
		return cfg, nil
	}

	r := s.Reconnect
	if r.Enabled != nil {
		cfg.Enabled = *r.Enabled
	}
	if r.Multiplier != nil {
		cfg.Multiplier = *r.Multiplier
	}
	if r.JitterRatio != nil {
		cfg.JitterRatio = *r.JitterRatio
	}

	initial, err := evalDuration(r.InitialDelay, cfg.InitialDelay)
	if err != nil {
		return cfg, err
	}
	cfg.InitialDelay = initial

	maxDelay, err := evalDuration(r.MaxDelay, cfg.MaxDelay)
	if err != nil {
		return cfg, err
	}
	cfg.MaxDelay = maxDelay

	return cfg, nil
}

func evalDuration(expr hcl.Expression, def time.Duration) (time.Duration, error) {
	if expr == nil {
		return def, nil
	}
	val, diags := expr.Value(&hcl.EvalContext{})
	if diags.HasErrors() {
		return def, fmt.Errorf("config: evaluate duration: %w", diags)
	}
	if val.IsNull() {
		return def, nil
	}

	switch val.Type() {
	case cty.String:
		d, err := time.ParseDuration(val.AsString())
		if err != nil {
			return def, fmt.Errorf("config: invalid duration %q: %w", val.AsString(), err)
		}
		return d, nil
	case cty.Number:
		f, _ := val.AsBigFloat().Float64()
		return time.Duration(f * float64(time.Millisecond)), nil
	default:
		return def, fmt.Errorf("config: duration must be a string or number, got %s", val.Type().FriendlyName())
	}
}
