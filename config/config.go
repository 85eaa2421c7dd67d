// Package config loads the single structured configuration document the
// core reads at startup, per spec §1's collaborator boundary ("the core
// consumes from [external collaborators] only validated ... configuration")
// and §6's expansion: one YAML document with directory roots, vector
// dimension/metric, B+ tree fan-out, SLA targets, and log verbosity.
// Grounded on the teacher's own gopkg.in/yaml.v3 use for its own index
// server configuration files.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kotadb/kotadb-go/kotaerr"
)

// SLA is the declarative target the C11 optimised index wrapper verifies
// itself against (spec §4.10's SLAComplianceReport input).
type SLA struct {
	MaxLatency         time.Duration `yaml:"max_latency"`
	MinThroughput      float64       `yaml:"min_throughput"`
	MaxMemoryOverhead  int64         `yaml:"max_memory_overhead_bytes"`
	RequiredComplexity string        `yaml:"required_complexity_class"`
	MaxContendedRatio  float64       `yaml:"max_contended_ratio"`
}

// DefaultSLA matches the §4.10 healthy-contention thresholds repeated as
// SLA defaults: contested ratio < 0.3, write wait < 100ms.
var DefaultSLA = SLA{
	MaxLatency:         100 * time.Millisecond,
	MinThroughput:      1,
	MaxMemoryOverhead:  0,
	RequiredComplexity: "Logarithmic",
	MaxContendedRatio:  0.3,
}

// Config is the whole of kotadb.yaml.
type Config struct {
	RootDir         string `yaml:"root_dir"`
	VectorDimension int    `yaml:"vector_dimension"`
	VectorMetric    string `yaml:"vector_metric"`
	BTreeDegree     int    `yaml:"btree_degree"`
	SLA             SLA    `yaml:"sla"`
	LogLevel        string `yaml:"log_level"`
}

// Default returns a Config with the spec's documented defaults: btree
// degree t=3 (spec §3's MIN_KEYS/MAX_KEYS formulas), cosine vector metric,
// and the default SLA.
func Default() Config {
	return Config{
		VectorMetric: "cosine",
		BTreeDegree:  3,
		SLA:          DefaultSLA,
		LogLevel:     "info",
	}
}

// Load reads and parses a kotadb.yaml document at path, applying
// Default()'s values for any field the document omits. The environment
// variable KOTADB_LOG_LEVEL, when set, overrides LogLevel and nothing else
// (no other environment variable is read), matching
// spec §6: "the wrapper stack may read log-level variables but the core
// respects only structured configuration."
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, kotaerr.Wrap(kotaerr.IOError, err, "read config file")
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, kotaerr.Wrap(kotaerr.ValidationInvalidInput, err, "parse config yaml")
	}
	if lvl := os.Getenv("KOTADB_LOG_LEVEL"); lvl != "" {
		cfg.LogLevel = lvl
	}
	return cfg, nil
}
