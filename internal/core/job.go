package core

// Job is one generated pipeline job descriptor. It is built complete or not
// at all and is not modified after it is returned.
type Job struct {
	ID           string    `yaml:"-" json:"id"`
	Name         string    `yaml:"name" json:"name"`
	Agent        any       `yaml:"agent" json:"agent"`
	Dependencies []string  `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
	Commands     []string  `yaml:"commands" json:"commands"`
	Artifacts    Artifacts `yaml:"artifacts,omitempty" json:"artifacts,omitempty"`
}

// Artifacts maps an artifact set name to the files it collects.
type Artifacts map[string]ArtifactSet

type ArtifactSet struct {
	Paths []string `yaml:"paths" json:"paths"`
}

func testResultsArtifacts() Artifacts {
	return Artifacts{"logs": {Paths: []string{"upm-ci~/test-results/**/*"}}}
}

func packagesArtifacts() Artifacts {
	return Artifacts{"packages": {Paths: []string{"upm-ci~/packages/**/*"}}}
}

func revisionArtifacts(file string) Artifacts {
	return Artifacts{"editor": {Paths: []string{file}}}
}
