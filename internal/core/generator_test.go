package core

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matrixci/internal/config"
	"matrixci/internal/namer"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func testMetafile() *config.Metafile {
	return &config.Metafile{
		Constants: config.DefaultConstants(),
		Packages: []config.Record{
			{"id": "core", "name": "Core", "packagename": "com.unity.core"},
			{"id": "universal", "name": "Universal", "packagename": "com.unity.universal"},
		},
		Templates: []config.Record{
			{"id": "urp", "name": "URP", "packagename": "com.unity.template-urp", "dependencies": []any{"core", "universal"}, "hascodependencies": true},
			{"id": "hd", "name": "HD", "packagename": "com.unity.template-hd", "dependencies": []any{"core"}},
		},
		Platforms: []config.Record{
			{"os": "windows", "name": "Win", "agent_package": map[string]any{"type": "Unity::VM"}, "editorpath": ".Editor\\Unity.exe", "copycmd": "copy a b"},
			{"os": "macos", "name": "OSX", "agent_package": map[string]any{"type": "Unity::VM::osx"}, "editorpath": ".Editor/Unity.app/Contents/MacOS/Unity", "copycmd": "cp a b"},
		},
		Editors: []config.Record{
			{"track": config.Number("2020.2")},
			{"track": "CUSTOM-REVISION"},
		},
	}
}

func TestGeneratorRun(t *testing.T) {
	res, err := NewGenerator(testMetafile(), quietLogger()).Run(context.Background())
	require.NoError(t, err)
	require.Empty(t, res.Errors)

	require.Len(t, res.Pipelines, 3)
	assert.Equal(t, namer.PackagesFilepath(), res.Pipelines[0].Path)
	assert.Equal(t, namer.EditorPrimingFilepath(), res.Pipelines[1].Path)
	assert.Equal(t, namer.TemplatesFilepath(), res.Pipelines[2].Path)

	assert.Len(t, res.Pipeline(namer.PackagesFilepath()).Jobs, 2)
	assert.Len(t, res.Pipeline(namer.EditorPrimingFilepath()).Jobs, 2, "one priming job per platform for the custom track")
	assert.Len(t, res.Pipeline(namer.TemplatesFilepath()).Jobs, 2*2*2*2)
	assert.Equal(t, 2+2+16, res.JobCount())

	templates := res.Pipeline(namer.TemplatesFilepath())
	assert.Equal(t, "test_urp_windows_2020.2", templates.Jobs[0].ID)
	assert.Equal(t, "test_urp_windows_2020.2_dependencies", templates.Jobs[1].ID)
	assert.Equal(t, "test_hd_macos_CUSTOM-REVISION_dependencies", templates.Jobs[15].ID)

	require.NoError(t, CheckReferences(res.Pipelines))
}

func TestGeneratorIsDeterministic(t *testing.T) {
	serial := NewGenerator(testMetafile(), quietLogger())
	serial.Parallelism = 1
	parallel := NewGenerator(testMetafile(), quietLogger())
	parallel.Parallelism = 8

	a, err := serial.Run(context.Background())
	require.NoError(t, err)
	b, err := parallel.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestGeneratorIsolatesBadRecords(t *testing.T) {
	meta := testMetafile()
	delete(meta.Templates[1], "packagename")
	meta.Editors = append(meta.Editors, config.Record{"track": "nonsense"})

	res, err := NewGenerator(meta, quietLogger()).Run(context.Background())
	require.NoError(t, err)

	templates := res.Pipeline(namer.TemplatesFilepath())
	// urp on 2 platforms × 2 good tracks, 2 jobs each
	assert.Len(t, templates.Jobs, 8)

	var cfgErrs, revErrs int
	for _, jobErr := range res.Errors {
		var cfgErr *config.ConfigError
		var revErr *config.UnresolvedRevisionError
		switch {
		case errors.As(jobErr, &cfgErr):
			cfgErrs++
			assert.Equal(t, "packagename", cfgErr.Key)
		case errors.As(jobErr, &revErr):
			revErrs++
			assert.Equal(t, "nonsense", revErr.Track)
		default:
			t.Errorf("unexpected error %v", jobErr)
		}
	}
	assert.Equal(t, 2*3, cfgErrs, "one per triple of the broken template")
	assert.Equal(t, 2*2, revErrs, "test and dependency test of urp on each platform")
}

func TestGeneratorDuplicateInput(t *testing.T) {
	meta := testMetafile()
	meta.Packages = append(meta.Packages, meta.Packages[0])

	res, err := NewGenerator(meta, quietLogger()).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "pack_core", res.Errors[0].JobID)
	assert.Contains(t, res.Errors[0].Error(), "duplicate job id")
}

func TestGeneratorCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewGenerator(testMetafile(), quietLogger()).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSchedulerTriples(t *testing.T) {
	s := NewScheduler()
	assert.Nil(t, s.Triples(0, 3, 3))
	assert.Equal(t, []Triple{
		{0, 0, 0}, {0, 0, 1}, {0, 1, 0}, {0, 1, 1},
	}, s.Triples(1, 2, 2))
}

func TestGeneratorKeepsNumericTrackLabels(t *testing.T) {
	meta, err := config.ParseMetafile([]byte(`
templates:
  - {id: t1, name: T1, packagename: com.t1}
platforms:
  - {os: win, name: Win, agent_package: a, editorpath: /e}
editors:
  - track: 2021.1
  - track: 2021.10
`), config.FormatYAML, "inline.yml")
	require.NoError(t, err)

	res, err := NewGenerator(meta, quietLogger()).Run(context.Background())
	require.NoError(t, err)
	require.Empty(t, res.Errors, "2021.1 and 2021.10 are different tracks")

	templates := res.Pipeline(namer.TemplatesFilepath())
	job := templates.Job("test_t1_win_2021.10_dependencies")
	require.NotNil(t, job)
	assert.Equal(t, "Test T1 Win 2021.10 - dependencies", job.Name)
	assert.Equal(t, "unity-downloader-cli -u 2021.10 -c editor --wait --published-only", job.Commands[2])
	assert.NotNil(t, templates.Job("test_t1_win_2021.1_dependencies"))
}
