package core

import (
	"fmt"

	"matrixci/internal/config"
	"matrixci/internal/namer"
)

// BuildPack builds the job that packs one package for its dependents.
func BuildPack(c config.Constants, pkg config.Package) (*Job, error) {
	steps := []Step{
		installUpmCI(c),
		{StepPack, Cmd("upm-ci", Word("package"), Word("pack"), Word("--package-path"), Word(pkg.PackageName))},
	}
	return newJob(
		namer.PackageJobIDPack(pkg.ID),
		fmt.Sprintf("Pack %s", pkg.Name),
		c.PackAgent,
		nil,
		steps,
		packagesArtifacts(),
	)
}

// BuildEditorPriming builds the job that resolves the custom revision for
// one platform and publishes it as an artifact the test jobs download from.
func BuildEditorPriming(c config.Constants, e config.Editor, p config.Platform) (*Job, error) {
	if !config.IsCustomRevision(e.Track) {
		return nil, fmt.Errorf("editor track %q does not need priming", e.Track)
	}
	resolve := Cmd("unity-downloader-cli",
		Word("-u"), EnvRef(c.CustomRevisionVar),
		Word("-c"), Word("editor"),
		Word("--wait"), Word("--published-only"), Word("--skip-download"))
	resolve.Stdout = c.RevisionFile

	steps := []Step{
		installDownloader(c),
		{StepDownloadEditor, resolve},
	}
	return newJob(
		namer.EditorJobID(e.Track, p.OS),
		fmt.Sprintf("[%s,%s] Editor priming", e.Track, p.OS),
		c.PrimingAgent,
		nil,
		steps,
		revisionArtifacts(c.RevisionFile),
	)
}
