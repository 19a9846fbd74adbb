package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matrixci/internal/config"
)

const (
	wantInstallUpmCI      = "npm install upm-ci-utils@stable -g --registry https://artifactory.prd.it.unity3d.com/artifactory/api/npm/upm-npm"
	wantInstallDownloader = "pip install unity-downloader-cli --index-url https://artifactory.prd.it.unity3d.com/artifactory/api/pypi/pypi/simple --upgrade"
)

func fixtures() (config.Template, config.Platform, config.Editor) {
	t := config.Template{ID: "t1", Name: "T One", PackageName: "com.t1", Dependencies: []string{"d1", "d2"}}
	p := config.Platform{OS: "win", Name: "Win", Agent: "a", EditorPath: "/e", CopyCmd: "cp"}
	e := config.Editor{Track: "2020.2"}
	return t, p, e
}

func TestBuildTestDependencies(t *testing.T) {
	tpl, p, e := fixtures()
	job, err := BuildTestDependencies(config.DefaultConstants(), tpl, p, e)
	require.NoError(t, err)

	assert.Equal(t, "test_t1_win_2020.2_dependencies", job.ID)
	assert.Equal(t, "Test T One Win 2020.2 - dependencies", job.Name)
	assert.Equal(t, "a", job.Agent)
	assert.Equal(t, []string{
		".yamato/_templates.yml#test_t1_win_2020.2",
		".yamato/_packages.yml#pack_d1",
		".yamato/_packages.yml#pack_d2",
	}, job.Dependencies)
	assert.Equal(t, []string{
		wantInstallUpmCI,
		wantInstallDownloader,
		"unity-downloader-cli -u 2020.2 -c editor --wait --published-only",
		"upm-ci template test -u /e --type updated-dependencies-tests --project-path com.t1",
	}, job.Commands)
	assert.Equal(t, Artifacts{"logs": {Paths: []string{"upm-ci~/test-results/**/*"}}}, job.Artifacts)
}

func TestCustomRevisionAddsPrimingEdge(t *testing.T) {
	tpl, p, _ := fixtures()
	e := config.Editor{Track: "Custom-Revision"}

	job, err := BuildTestDependencies(config.DefaultConstants(), tpl, p, e)
	require.NoError(t, err)

	assert.Equal(t, []string{
		".yamato/_templates.yml#test_t1_win_Custom-Revision",
		".yamato/_packages.yml#pack_d1",
		".yamato/_packages.yml#pack_d2",
		".yamato/_editor_priming.yml#editor:priming:Custom-Revision:win",
	}, job.Dependencies)
	assert.Equal(t, "unity-downloader-cli --source-file unity_revision.txt -c editor --wait --published-only", job.Commands[2])
}

func TestCodependencyPresence(t *testing.T) {
	tests := []struct {
		name      string
		present   bool
		value     any
		wantCount int
	}{
		{name: "absent", wantCount: 4},
		{name: "true", present: true, value: true, wantCount: 5},
		{name: "false still counts", present: true, value: false, wantCount: 5},
		{name: "empty string still counts", present: true, value: "", wantCount: 5},
		{name: "null is absent", present: true, value: nil, wantCount: 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fixture, p, e := fixtures()
			r := config.Record{"id": fixture.ID, "name": fixture.Name, "packagename": fixture.PackageName}
			if tt.present {
				r["hascodependencies"] = tt.value
			}
			tpl, err := config.NewTemplate(0, r)
			require.NoError(t, err)

			job, err := BuildTestDependencies(config.DefaultConstants(), tpl, p, e)
			require.NoError(t, err)
			require.Len(t, job.Commands, tt.wantCount)
			if tt.wantCount == 5 {
				assert.Equal(t, "cp", job.Commands[3])
			} else {
				assert.NotContains(t, job.Commands, "cp")
			}
			assert.Contains(t, job.Commands[len(job.Commands)-1], "upm-ci template test")
		})
	}
}

func TestDependencyCount(t *testing.T) {
	for _, deps := range [][]string{nil, {"d1"}, {"d1", "d2", "d3"}} {
		for _, track := range []string{"2020.2", "custom-revision", "CUSTOM-REVISION", "trunk"} {
			tpl, p, _ := fixtures()
			tpl.Dependencies = deps
			e := config.Editor{Track: track}

			job, err := BuildTestDependencies(config.DefaultConstants(), tpl, p, e)
			require.NoError(t, err)

			want := 1 + len(deps)
			if config.IsCustomRevision(track) {
				want++
			}
			assert.Len(t, job.Dependencies, want, "deps=%v track=%s", deps, track)
		}
	}
}

func TestUnknownTrackBuildsNothing(t *testing.T) {
	tpl, p, _ := fixtures()
	job, err := BuildTestDependencies(config.DefaultConstants(), tpl, p, config.Editor{Track: "nonsense"})

	var unresolved *config.UnresolvedRevisionError
	require.ErrorAs(t, err, &unresolved)
	assert.Nil(t, job)
}

func TestMissingCopyCmd(t *testing.T) {
	tpl, p, e := fixtures()
	tpl.HasCodependencies = true
	p.CopyCmd = ""

	job, err := BuildTestDependencies(config.DefaultConstants(), tpl, p, e)
	var cfgErr *config.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "copycmd", cfgErr.Key)
	assert.Nil(t, job)
}

func TestDuplicateTemplateDependency(t *testing.T) {
	tpl, p, e := fixtures()
	tpl.Dependencies = []string{"d1", "d1"}

	_, err := BuildTestDependencies(config.DefaultConstants(), tpl, p, e)
	var cfgErr *config.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "dependencies", cfgErr.Key)
}

func TestBuildIsDeterministic(t *testing.T) {
	tpl, p, e := fixtures()
	tpl.HasCodependencies = true
	c := config.DefaultConstants()

	first, err := BuildTestDependencies(c, tpl, p, e)
	require.NoError(t, err)
	second, err := BuildTestDependencies(c, tpl, p, e)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestBuildTest(t *testing.T) {
	tpl, p, _ := fixtures()
	job, err := BuildTest(config.DefaultConstants(), tpl, p, config.Editor{Track: "custom-revision"})
	require.NoError(t, err)

	assert.Equal(t, "test_t1_win_custom-revision", job.ID)
	assert.Equal(t, "Test T One Win custom-revision", job.Name)
	assert.Equal(t, []string{
		".yamato/_packages.yml#pack_d1",
		".yamato/_packages.yml#pack_d2",
		".yamato/_editor_priming.yml#editor:priming:custom-revision:win",
	}, job.Dependencies)
	assert.Equal(t, "upm-ci template test -u /e --project-path com.t1", job.Commands[len(job.Commands)-1])
}

func TestBuildPack(t *testing.T) {
	c := config.DefaultConstants()
	job, err := BuildPack(c, config.Package{ID: "core", Name: "Core", PackageName: "com.unity.core"})
	require.NoError(t, err)

	assert.Equal(t, "pack_core", job.ID)
	assert.Equal(t, "Pack Core", job.Name)
	assert.Equal(t, c.PackAgent, job.Agent)
	assert.Empty(t, job.Dependencies)
	assert.Equal(t, []string{
		wantInstallUpmCI,
		"upm-ci package pack --package-path com.unity.core",
	}, job.Commands)
	assert.Contains(t, job.Artifacts, "packages")
}

func TestBuildEditorPriming(t *testing.T) {
	_, p, _ := fixtures()
	c := config.DefaultConstants()

	job, err := BuildEditorPriming(c, config.Editor{Track: "CUSTOM-REVISION"}, p)
	require.NoError(t, err)
	assert.Equal(t, "editor:priming:CUSTOM-REVISION:win", job.ID)
	assert.Equal(t, "[CUSTOM-REVISION,win] Editor priming", job.Name)
	assert.Equal(t, []string{
		wantInstallDownloader,
		`unity-downloader-cli -u "$CUSTOM_REVISION" -c editor --wait --published-only --skip-download > unity_revision.txt`,
	}, job.Commands)
	assert.Equal(t, Artifacts{"editor": {Paths: []string{"unity_revision.txt"}}}, job.Artifacts)

	_, err = BuildEditorPriming(c, config.Editor{Track: "2020.2"}, p)
	assert.Error(t, err)
}
