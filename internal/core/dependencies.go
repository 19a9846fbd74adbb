package core

import (
	"matrixci/internal/config"
	"matrixci/internal/namer"
)

// TestDependenciesRefs lists what a dependency test job waits for: the base
// test job of the same triple, the pack job of every template dependency in
// declared order, and the editor priming job for custom revisions.
func TestDependenciesRefs(t config.Template, p config.Platform, e config.Editor) []namer.Ref {
	refs := make([]namer.Ref, 0, 2+len(t.Dependencies))
	refs = append(refs, namer.NewRef(namer.TemplatesFilepath(), namer.TemplateTestID(t.ID, p.OS, e.Track)))
	refs = append(refs, packRefs(t)...)
	if config.IsCustomRevision(e.Track) {
		refs = append(refs, primingRef(p, e))
	}
	return refs
}

// TestRefs lists what the base test job waits for.
func TestRefs(t config.Template, p config.Platform, e config.Editor) []namer.Ref {
	refs := packRefs(t)
	if config.IsCustomRevision(e.Track) {
		refs = append(refs, primingRef(p, e))
	}
	return refs
}

// duplicates in the template are the caller's to remove
func packRefs(t config.Template) []namer.Ref {
	refs := make([]namer.Ref, 0, len(t.Dependencies))
	for _, dep := range t.Dependencies {
		refs = append(refs, namer.NewRef(namer.PackagesFilepath(), namer.PackageJobIDPack(dep)))
	}
	return refs
}

func primingRef(p config.Platform, e config.Editor) namer.Ref {
	return namer.NewRef(namer.EditorPrimingFilepath(), namer.EditorJobID(e.Track, p.OS))
}

func refStrings(refs []namer.Ref) []string {
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = r.String()
	}
	return out
}
