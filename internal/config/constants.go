package config

import (
	"os"
)

// Defaults for the package registry and the downloader index.
const (
	DefaultNpmRegistryURL     = "https://artifactory.prd.it.unity3d.com/artifactory/api/npm/upm-npm"
	DefaultDownloaderIndexURL = "https://artifactory.prd.it.unity3d.com/artifactory/api/pypi/pypi/simple"
	DefaultRevisionFile       = "unity_revision.txt"
	DefaultCustomRevisionVar  = "CUSTOM_REVISION"
)

// Environment overrides, applied after the metafile.
const (
	EnvNpmRegistry     = "MATRIXCI_NPM_REGISTRY"
	EnvDownloaderIndex = "MATRIXCI_DOWNLOADER_INDEX"
)

// Constants holds the environment specific values every job builder reads.
// It is built once per run and passed by value, never mutated afterwards.
type Constants struct {
	NpmRegistryURL     string
	DownloaderIndexURL string
	RevisionFile       string
	CustomRevisionVar  string
	PackAgent          any
	PrimingAgent       any
}

func DefaultConstants() Constants {
	return Constants{
		NpmRegistryURL:     DefaultNpmRegistryURL,
		DownloaderIndexURL: DefaultDownloaderIndexURL,
		RevisionFile:       DefaultRevisionFile,
		CustomRevisionVar:  DefaultCustomRevisionVar,
		PackAgent: map[string]any{
			"type":   "Unity::VM",
			"image":  "package-ci/ubuntu:stable",
			"flavor": "b1.large",
		},
		PrimingAgent: map[string]any{
			"type":   "Unity::VM",
			"image":  "package-ci/ubuntu:stable",
			"flavor": "b1.small",
		},
	}
}

// NewConstants layers a metafile constants section over the defaults.
func NewConstants(r Record) (Constants, error) {
	c := DefaultConstants()
	fields := []struct {
		key string
		dst *string
	}{
		{"npm_registry", &c.NpmRegistryURL},
		{"downloader_index", &c.DownloaderIndexURL},
		{"revision_file", &c.RevisionFile},
		{"custom_revision_var", &c.CustomRevisionVar},
	}
	for _, f := range fields {
		if _, ok := r[f.key]; !ok {
			continue
		}
		s, err := r.requiredString("constants", -1, f.key)
		if err != nil {
			return Constants{}, err
		}
		*f.dst = s
	}
	if v, ok := r["pack_agent"]; ok && v != nil {
		c.PackAgent = v
	}
	if v, ok := r["priming_agent"]; ok && v != nil {
		c.PrimingAgent = v
	}
	if !envVarName.MatchString(c.CustomRevisionVar) {
		return Constants{}, &ConfigError{Kind: "constants", Index: -1, Key: "custom_revision_var", Reason: "not an environment variable name:"}
	}
	return c, nil
}

// WithEnv returns a copy with the MATRIXCI_* overrides from lookup applied.
func (c Constants) WithEnv(lookup func(string) (string, bool)) Constants {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if v, ok := lookup(EnvNpmRegistry); ok && v != "" {
		c.NpmRegistryURL = v
	}
	if v, ok := lookup(EnvDownloaderIndex); ok && v != "" {
		c.DownloaderIndexURL = v
	}
	return c
}
