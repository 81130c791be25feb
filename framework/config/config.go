package config

import (
	"fmt"
	"sort"

	"github.com/hashicorp/go-multierror"

	"github.com/km-arc/go-deptrac/framework/validation"
)

// Section is the top-level key deptrac reads from configuration files.
const Section = "deptrac"

// AnalyserTypes lists the dependency emitters the analyser understands.
var AnalyserTypes = []string{
	"class",
	"class_superglobal",
	"file",
	"function",
	"function_call",
	"function_superglobal",
	"use",
}

// Config is the typed form of the deptrac section after every file that
// contributed to it has been merged.
type Config struct {
	Paths                          []string
	ExcludeFiles                   []string
	Layers                         []Layer
	Ruleset                        map[string][]string
	SkipViolations                 map[string][]string
	Formatters                     map[string]any
	Analyser                       AnalyserConfig
	IgnoreUncoveredInternalClasses bool

	// CacheFile is nil when the section leaves the choice to the defaults.
	CacheFile *string
}

// Layer is a named group of collectors.
type Layer struct {
	Name       string
	Collectors []map[string]any
}

// AnalyserConfig selects the dependency emitters.
type AnalyserConfig struct {
	Types []string
}

// Defaults returns the configuration used when a key is not set anywhere.
func Defaults() Config {
	return Config{
		Paths:                          []string{},
		ExcludeFiles:                   []string{},
		Layers:                         []Layer{},
		Ruleset:                        map[string][]string{},
		SkipViolations:                 map[string][]string{},
		Formatters:                     map[string]any{},
		Analyser:                       AnalyserConfig{Types: []string{"class", "function"}},
		IgnoreUncoveredInternalClasses: true,
	}
}

var sectionRules = validation.Rules{
	"paths":                             "nullable|list|strings",
	"exclude_files":                     "nullable|list|strings",
	"layers":                            "nullable|list",
	"ruleset":                           "nullable|map",
	"skip_violations":                   "nullable|map",
	"formatters":                        "nullable|map",
	"analyser":                          "nullable|map",
	"ignore_uncovered_internal_classes": "nullable|boolean",
	"cache_file":                        "nullable|string",
}

var analyserRules = validation.Rules{
	"types": "nullable|list|strings|in:class,class_superglobal,file,function,function_call,function_superglobal,use",
}

var layerRules = validation.Rules{
	"name":       "required|string",
	"collectors": "nullable|list",
	"attributes": "nullable|map",
}

// Merge folds raw sections in load order; a key set by a later section
// replaces the earlier value.
func Merge(sections []map[string]any) map[string]any {
	merged := map[string]any{}
	for _, s := range sections {
		for k, v := range s {
			merged[k] = v
		}
	}
	return merged
}

// Decode merges, validates and converts raw deptrac sections.
func Decode(sections []map[string]any) (Config, error) {
	raw := Merge(sections)

	v := validation.Make(raw, sectionRules).Strict().Under(Section)
	if v.Fails() {
		return Config{}, v.Errors().Err()
	}

	cfg := Defaults()
	var errs *multierror.Error

	if paths, ok := validation.AsStrings(raw["paths"]); ok {
		cfg.Paths = paths
	}
	if excl, ok := validation.AsStrings(raw["exclude_files"]); ok {
		cfg.ExcludeFiles = excl
	}
	if b, ok := raw["ignore_uncovered_internal_classes"].(bool); ok {
		cfg.IgnoreUncoveredInternalClasses = b
	}
	if s, ok := raw["cache_file"].(string); ok {
		cfg.CacheFile = &s
	}
	if m, ok := raw["formatters"].(map[string]any); ok {
		cfg.Formatters = m
	}

	if m, ok := raw["analyser"].(map[string]any); ok {
		av := validation.Make(m, analyserRules).Strict().Under(Section + ".analyser")
		if av.Fails() {
			errs = multierror.Append(errs, av.Errors().Err())
		} else if types, ok := validation.AsStrings(m["types"]); ok {
			cfg.Analyser.Types = types
		}
	}

	if list, ok := validation.AsList(raw["layers"]); ok {
		layers, err := decodeLayers(list)
		if err != nil {
			errs = multierror.Append(errs, err)
		}
		cfg.Layers = layers
	}

	for _, key := range []string{"ruleset", "skip_violations"} {
		m, ok := raw[key].(map[string]any)
		if !ok {
			continue
		}
		decoded, err := decodeStringListMap(key, m)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		if key == "ruleset" {
			cfg.Ruleset = decoded
		} else {
			cfg.SkipViolations = decoded
		}
	}

	if err := errs.ErrorOrNil(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decodeLayers(list []any) ([]Layer, error) {
	var errs *multierror.Error
	layers := make([]Layer, 0, len(list))
	for i, item := range list {
		path := fmt.Sprintf("%s.layers.%d", Section, i)
		m, ok := item.(map[string]any)
		if !ok {
			errs = multierror.Append(errs, fmt.Errorf("the %s must be a map", path))
			continue
		}
		lv := validation.Make(m, layerRules).Strict().Under(path)
		if lv.Fails() {
			errs = multierror.Append(errs, lv.Errors().Err())
			continue
		}
		layer := Layer{Name: m["name"].(string), Collectors: []map[string]any{}}
		collectors, _ := validation.AsList(m["collectors"])
		for j, c := range collectors {
			cm, ok := c.(map[string]any)
			if !ok {
				errs = multierror.Append(errs, fmt.Errorf("the %s.collectors.%d must be a map", path, j))
				continue
			}
			if _, ok := cm["type"].(string); !ok {
				errs = multierror.Append(errs, fmt.Errorf("the %s.collectors.%d.type field is required", path, j))
				continue
			}
			layer.Collectors = append(layer.Collectors, cm)
		}
		layers = append(layers, layer)
	}
	return layers, errs.ErrorOrNil()
}

func decodeStringListMap(key string, m map[string]any) (map[string][]string, error) {
	out := make(map[string][]string, len(m))
	for k, v := range m {
		if v == nil {
			out[k] = []string{}
			continue
		}
		list, ok := validation.AsStrings(v)
		if !ok {
			return nil, fmt.Errorf("the %s.%s.%s must be a list of strings", Section, key, k)
		}
		out[k] = list
	}
	return out, nil
}

// Validate checks cross-field constraints that single-key rules cannot see.
func (c Config) Validate() error {
	var errs *multierror.Error
	seen := map[string]bool{}
	for _, l := range c.Layers {
		if l.Name == "" {
			errs = multierror.Append(errs, fmt.Errorf("layer names must not be empty"))
			continue
		}
		if seen[l.Name] {
			errs = multierror.Append(errs, fmt.Errorf("layer %q is defined more than once", l.Name))
		}
		seen[l.Name] = true
	}
	if len(c.Layers) > 0 {
		for _, from := range sortedRulesetKeys(c.Ruleset) {
			if !seen[from] {
				errs = multierror.Append(errs, fmt.Errorf("ruleset references undefined layer %q", from))
			}
		}
	}
	return errs.ErrorOrNil()
}

// Parameters renders the configuration as container parameters.
func (c Config) Parameters() map[string]any {
	layers := make([]map[string]any, len(c.Layers))
	for i, l := range c.Layers {
		layers[i] = map[string]any{"name": l.Name, "collectors": l.Collectors}
	}
	return map[string]any{
		"paths":                             c.Paths,
		"exclude_files":                     c.ExcludeFiles,
		"layers":                            layers,
		"ruleset":                           c.Ruleset,
		"skip_violations":                   c.SkipViolations,
		"formatters":                        c.Formatters,
		"analyser":                          map[string]any{"types": c.Analyser.Types},
		"ignore_uncovered_internal_classes": c.IgnoreUncoveredInternalClasses,
	}
}

func sortedRulesetKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
