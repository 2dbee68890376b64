package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/crtreco/internal/crt"
	"github.com/banshee-data/crtreco/internal/crt/event"
)

// DefaultConfigPath is the path to the canonical reconstruction defaults file.
const DefaultConfigPath = "config/crtreco.defaults.json"

// RecoConfig is the root configuration for CRT reconstruction. Every field
// is optional; the Get* accessors supply defaults for omitted fields.
type RecoConfig struct {
	// Clustering
	CoincidenceTimeRequirement *uint32 `json:"coincidence_time_requirement,omitempty"` // ns
	ClusterTaggerParallel      *bool   `json:"cluster_tagger_parallel,omitempty"`

	// Geometry
	GeometryPath *string `json:"geometry_path,omitempty"`

	// Input collection labels
	StripHitLabel   *string `json:"strip_hit_label,omitempty"`
	FEBDataLabel    *string `json:"feb_data_label,omitempty"`
	SimDepositLabel *string `json:"sim_deposit_label,omitempty"`
	ClusterLabel    *string `json:"cluster_label,omitempty"`

	// Truth matching
	MatchInputClusters *bool `json:"match_input_clusters,omitempty"`

	// Processing
	Workers *int `json:"workers,omitempty"`

	// Output and service
	DBPath          *string `json:"db_path,omitempty"`
	ListenAddr      *string `json:"listen_addr,omitempty"`
	ShutdownTimeout *string `json:"shutdown_timeout,omitempty"` // duration string like "5s"
}

// Helper functions to create pointers
func ptrBool(v bool) *bool       { return &v }
func ptrString(v string) *string { return &v }
func ptrInt(v int) *int          { return &v }
func ptrUint32(v uint32) *uint32 { return &v }

// EmptyRecoConfig returns a RecoConfig with all fields set to nil.
func EmptyRecoConfig() *RecoConfig {
	return &RecoConfig{}
}

// DefaultRecoConfig returns a RecoConfig with every field set to its default.
func DefaultRecoConfig() *RecoConfig {
	return &RecoConfig{
		CoincidenceTimeRequirement: ptrUint32(50),
		ClusterTaggerParallel:      ptrBool(true),
		GeometryPath:               ptrString("config/crt_geometry.yaml"),
		StripHitLabel:              ptrString("crtstrips"),
		FEBDataLabel:               ptrString("crtsim"),
		SimDepositLabel:            ptrString("crtsim"),
		ClusterLabel:               ptrString("crtclustering"),
		MatchInputClusters:         ptrBool(false),
		Workers:                    ptrInt(1),
		DBPath:                     ptrString("crtreco.db"),
		ListenAddr:                 ptrString("localhost:8090"),
		ShutdownTimeout:            ptrString("5s"),
	}
}

// LoadRecoConfig loads a RecoConfig from a JSON file.
// The file must have a .json extension and be under 1MB. Fields omitted
// from the file fall back to their defaults through the Get* accessors.
func LoadRecoConfig(path string) (*RecoConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyRecoConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical defaults from DefaultConfigPath,
// searching the current directory and its parents. Panics if the file
// cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *RecoConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/crt/pipeline/
		"../../../../" + DefaultConfigPath, // from internal/crt/storage/sqlite/
	}
	for _, path := range candidates {
		if cfg, err := LoadRecoConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *RecoConfig) Validate() error {
	if c.CoincidenceTimeRequirement != nil && *c.CoincidenceTimeRequirement == 0 {
		return fmt.Errorf("coincidence_time_requirement must be positive")
	}

	if c.Workers != nil && *c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", *c.Workers)
	}

	for name, label := range map[string]*string{
		"strip_hit_label":   c.StripHitLabel,
		"feb_data_label":    c.FEBDataLabel,
		"sim_deposit_label": c.SimDepositLabel,
		"cluster_label":     c.ClusterLabel,
	} {
		if label != nil && *label == "" {
			return fmt.Errorf("%s must not be empty", name)
		}
	}

	if c.ShutdownTimeout != nil && *c.ShutdownTimeout != "" {
		if _, err := time.ParseDuration(*c.ShutdownTimeout); err != nil {
			return fmt.Errorf("invalid shutdown_timeout '%s': %w", *c.ShutdownTimeout, err)
		}
	}

	return nil
}

// GetCoincidenceTimeRequirement returns the coincidence window in ns or the default.
func (c *RecoConfig) GetCoincidenceTimeRequirement() uint32 {
	if c.CoincidenceTimeRequirement == nil {
		return 50
	}
	return *c.CoincidenceTimeRequirement
}

// GetClusterTaggerParallel returns the cluster_tagger_parallel value or the default.
func (c *RecoConfig) GetClusterTaggerParallel() bool {
	if c.ClusterTaggerParallel == nil {
		return true
	}
	return *c.ClusterTaggerParallel
}

// GetClusteringParams returns the clustering parameters for crt.NewClusterProducer.
func (c *RecoConfig) GetClusteringParams() crt.ClusteringParams {
	return crt.ClusteringParams{
		CoincidenceWindow: c.GetCoincidenceTimeRequirement(),
		ParallelTaggers:   c.GetClusterTaggerParallel(),
	}
}

// GetGeometryPath returns the geometry_path value or the default.
func (c *RecoConfig) GetGeometryPath() string {
	if c.GeometryPath == nil || *c.GeometryPath == "" {
		return "config/crt_geometry.yaml"
	}
	return *c.GeometryPath
}

// GetLabels returns the input collection labels, defaulted per field.
func (c *RecoConfig) GetLabels() event.Labels {
	labels := event.Labels{
		StripHit:   "crtstrips",
		FEBData:    "crtsim",
		SimDeposit: "crtsim",
		Cluster:    "crtclustering",
	}
	if c.StripHitLabel != nil {
		labels.StripHit = *c.StripHitLabel
	}
	if c.FEBDataLabel != nil {
		labels.FEBData = *c.FEBDataLabel
	}
	if c.SimDepositLabel != nil {
		labels.SimDeposit = *c.SimDepositLabel
	}
	if c.ClusterLabel != nil {
		labels.Cluster = *c.ClusterLabel
	}
	return labels
}

// GetMatchInputClusters returns the match_input_clusters value or the default.
func (c *RecoConfig) GetMatchInputClusters() bool {
	if c.MatchInputClusters == nil {
		return false
	}
	return *c.MatchInputClusters
}

// GetWorkers returns the workers value or the default.
func (c *RecoConfig) GetWorkers() int {
	if c.Workers == nil {
		return 1
	}
	return *c.Workers
}

// GetDBPath returns the db_path value or the default.
func (c *RecoConfig) GetDBPath() string {
	if c.DBPath == nil || *c.DBPath == "" {
		return "crtreco.db"
	}
	return *c.DBPath
}

// GetListenAddr returns the listen_addr value or the default.
func (c *RecoConfig) GetListenAddr() string {
	if c.ListenAddr == nil || *c.ListenAddr == "" {
		return "localhost:8090"
	}
	return *c.ListenAddr
}

// GetShutdownTimeout parses and returns the ShutdownTimeout as a time.Duration.
func (c *RecoConfig) GetShutdownTimeout() time.Duration {
	if c.ShutdownTimeout == nil || *c.ShutdownTimeout == "" {
		return 5 * time.Second
	}
	d, err := time.ParseDuration(*c.ShutdownTimeout)
	if err != nil {
		return 5 * time.Second // default on parse error
	}
	return d
}
