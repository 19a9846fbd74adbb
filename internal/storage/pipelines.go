package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"matrixci/internal/core"
	"matrixci/pkg/utils"
)

const header = "# Generated by matrixci. Do not edit, regenerate instead.\n"

// PipelineStorage writes generated pipelines under a base directory,
// usually the repository root.
type PipelineStorage struct {
	BaseDir string
}

func NewPipelineStorage(baseDir string) *PipelineStorage {
	return &PipelineStorage{BaseDir: baseDir}
}

// MarshalPipeline renders a pipeline as a YAML mapping of job id to job,
// keeping the generation order of the jobs.
func MarshalPipeline(p *core.Pipeline) ([]byte, error) {
	root := &yaml.Node{Kind: yaml.MappingNode}
	for _, j := range p.Jobs {
		var body yaml.Node
		if err := body.Encode(j); err != nil {
			return nil, fmt.Errorf("encoding job %s: %w", j.ID, err)
		}
		root.Content = append(root.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: j.ID},
			&body,
		)
	}

	var buf bytes.Buffer
	buf.WriteString(header)
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{root}}); err != nil {
		return nil, fmt.Errorf("encoding %s: %w", p.Path, err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ParsePipeline reads back a file written by MarshalPipeline.
func ParsePipeline(path string, data []byte) (*core.Pipeline, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	p := &core.Pipeline{Path: path, Jobs: []*core.Job{}}
	if len(doc.Content) == 0 {
		return p, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("parsing %s: expected a mapping of jobs", path)
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		job := &core.Job{}
		if err := root.Content[i+1].Decode(job); err != nil {
			return nil, fmt.Errorf("parsing %s: job %s: %w", path, root.Content[i].Value, err)
		}
		job.ID = root.Content[i].Value
		p.Jobs = append(p.Jobs, job)
	}
	return p, nil
}

func (s *PipelineStorage) path(p string) string {
	return filepath.Join(s.BaseDir, filepath.FromSlash(p))
}

// SavePipeline writes p to its path under BaseDir and returns the file
// written.
func (s *PipelineStorage) SavePipeline(p *core.Pipeline) (string, error) {
	data, err := MarshalPipeline(p)
	if err != nil {
		return "", err
	}
	filePath := s.path(p.Path)
	if err := os.MkdirAll(filepath.Dir(filePath), 0775); err != nil {
		return "", err
	}
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return "", err
	}
	return filePath, nil
}

// LoadPipeline reads the pipeline stored for the given relative path.
func (s *PipelineStorage) LoadPipeline(path string) (*core.Pipeline, error) {
	data, err := os.ReadFile(s.path(path))
	if err != nil {
		return nil, err
	}
	return ParsePipeline(path, data)
}

// Drift describes a stored file that no longer matches generation.
type Drift struct {
	Path    string
	Want    string // sha256 of the generated content
	Got     string // sha256 on disk, empty when the file is missing
	Missing bool
}

// Verify regenerates the content of every pipeline and compares it with
// what is on disk.
func (s *PipelineStorage) Verify(pipelines []*core.Pipeline) ([]Drift, error) {
	var drift []Drift
	for _, p := range pipelines {
		data, err := MarshalPipeline(p)
		if err != nil {
			return nil, err
		}
		want := utils.HashBytes(data)
		got, err := utils.HashFile(s.path(p.Path))
		switch {
		case errors.Is(err, fs.ErrNotExist):
			drift = append(drift, Drift{Path: p.Path, Want: want, Missing: true})
		case err != nil:
			return nil, err
		case got != want:
			drift = append(drift, Drift{Path: p.Path, Want: want, Got: got})
		}
	}
	return drift, nil
}
