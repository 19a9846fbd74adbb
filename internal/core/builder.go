package core

import (
	"fmt"

	"matrixci/internal/config"
	"matrixci/internal/namer"
)

// UpdatedDependenciesTests is the upm-ci test type of the dependency test job.
const UpdatedDependenciesTests = "updated-dependencies-tests"

// BuildTestDependencies builds the job that tests a template against the
// freshly packed versions of its dependencies. It does no I/O; the returned
// job is complete or the error says why it could not be built.
func BuildTestDependencies(c config.Constants, t config.Template, p config.Platform, e config.Editor) (*Job, error) {
	steps, err := templateSteps(c, t, p, e, UpdatedDependenciesTests)
	if err != nil {
		return nil, err
	}
	return newJob(
		namer.TemplateTestDependenciesID(t.ID, p.OS, e.Track),
		fmt.Sprintf("Test %s %s %s - dependencies", t.Name, p.Name, e.Track),
		p.Agent,
		TestDependenciesRefs(t, p, e),
		steps,
		testResultsArtifacts(),
	)
}

// BuildTest builds the base template test job the dependency test extends.
func BuildTest(c config.Constants, t config.Template, p config.Platform, e config.Editor) (*Job, error) {
	steps, err := templateSteps(c, t, p, e, "")
	if err != nil {
		return nil, err
	}
	return newJob(
		namer.TemplateTestID(t.ID, p.OS, e.Track),
		fmt.Sprintf("Test %s %s %s", t.Name, p.Name, e.Track),
		p.Agent,
		TestRefs(t, p, e),
		steps,
		testResultsArtifacts(),
	)
}

// templateSteps is install, install, download, the optional copy, test.
func templateSteps(c config.Constants, t config.Template, p config.Platform, e config.Editor, testType string) ([]Step, error) {
	rev, err := c.EditorRevision(e, p.OS)
	if err != nil {
		return nil, err
	}
	steps := []Step{
		installUpmCI(c),
		installDownloader(c),
		downloadEditor(rev),
	}
	// presence of the key is what counts, not its value
	if t.HasCodependencies {
		if p.CopyCmd == "" {
			return nil, &config.ConfigError{Kind: "platform", Index: -1, Key: "copycmd",
				Reason: fmt.Sprintf("template %q has codependencies, platform %q is missing", t.ID, p.OS)}
		}
		steps = append(steps, copyCodependencies(p))
	}
	steps = append(steps, testTemplate(p, t, testType))
	return steps, nil
}

func newJob(id, name string, agent any, refs []namer.Ref, steps []Step, artifacts Artifacts) (*Job, error) {
	commands, err := RenderSteps(steps)
	if err != nil {
		return nil, fmt.Errorf("job %s: %w", id, err)
	}
	seen := make(map[namer.Ref]bool, len(refs))
	for _, r := range refs {
		if seen[r] {
			return nil, &config.ConfigError{Kind: "template", Index: -1, Key: "dependencies",
				Reason: fmt.Sprintf("job %s would depend twice on %s, duplicate entry in", id, r)}
		}
		seen[r] = true
	}
	return &Job{
		ID:           id,
		Name:         name,
		Agent:        agent,
		Dependencies: refStrings(refs),
		Commands:     commands,
		Artifacts:    artifacts,
	}, nil
}
