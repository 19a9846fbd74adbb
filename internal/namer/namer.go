package namer

import (
	"fmt"
	"strings"
)

// Files each generation pass writes its jobs into
const (
	templatesFile     = ".yamato/_templates.yml"
	packagesFile      = ".yamato/_packages.yml"
	editorPrimingFile = ".yamato/_editor_priming.yml"
)

// escaper keeps the separators out of id components so two different
// inputs can never render to the same id
var escaper = strings.NewReplacer(
	"%", "%25",
	"_", "%5F",
	":", "%3A",
	"#", "%23",
)

func part(s string) string {
	return escaper.Replace(s)
}

// TemplatesFilepath is the file holding every template test job.
func TemplatesFilepath() string { return templatesFile }

// PackagesFilepath is the file holding the pack jobs.
func PackagesFilepath() string { return packagesFile }

// EditorPrimingFilepath is the file holding the editor priming jobs.
func EditorPrimingFilepath() string { return editorPrimingFile }

// TemplateTestID names the base test job of a template on one platform/track.
func TemplateTestID(templateID, platformOS, editorTrack string) string {
	return fmt.Sprintf("test_%s_%s_%s", part(templateID), part(platformOS), part(editorTrack))
}

// TemplateTestDependenciesID names the job that re-runs the template tests
// against updated package dependencies.
func TemplateTestDependenciesID(templateID, platformOS, editorTrack string) string {
	return TemplateTestID(templateID, platformOS, editorTrack) + "_dependencies"
}

// PackageJobIDPack names the job that packs a package for its dependents.
func PackageJobIDPack(packageID string) string {
	return "pack_" + part(packageID)
}

// EditorJobID names the priming job that resolves an editor revision for a platform.
func EditorJobID(editorTrack, platformOS string) string {
	return fmt.Sprintf("editor:priming:%s:%s", part(editorTrack), part(platformOS))
}

// Ref is a cross file job reference in the form <path>#<job-id>.
type Ref string

func NewRef(path, jobID string) Ref {
	return Ref(path + "#" + jobID)
}

// Split returns the file path and job id of the reference.
func (r Ref) Split() (path, jobID string, err error) {
	path, jobID, ok := strings.Cut(string(r), "#")
	if !ok || path == "" || jobID == "" {
		return "", "", fmt.Errorf("malformed job reference %q", string(r))
	}
	return path, jobID, nil
}

func (r Ref) String() string {
	return string(r)
}
