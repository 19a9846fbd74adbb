package config

import (
	"regexp"
	"strings"
)

// CustomRevisionTrack is the track whose revision is supplied per run and
// primed by a separate job.
const CustomRevisionTrack = "custom-revision"

var (
	// release labels: 2020.2, 2021.1.0f1, 2022.3.10b2
	releaseTrack = regexp.MustCompile(`^\d{4}\.\d+(\.\d+[abfp]\d+)?$`)
	envVarName   = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

var fixedChannels = map[string]bool{
	"trunk": true,
}

// Revision says how the downloader finds the editor build. Exactly one of
// Value and SourceFile is set.
type Revision struct {
	Value      string
	SourceFile string
}

// IsCustomRevision reports whether track is the custom revision channel.
func IsCustomRevision(track string) bool {
	return strings.EqualFold(track, CustomRevisionTrack)
}

// EditorRevision resolves the editor build to install on platformOS.
func (c Constants) EditorRevision(editor Editor, platformOS string) (Revision, error) {
	switch {
	case IsCustomRevision(editor.Track):
		// written by the priming job, see namer.EditorJobID
		return Revision{SourceFile: c.RevisionFile}, nil
	case editor.Revisions[platformOS] != "":
		return Revision{Value: editor.Revisions[platformOS]}, nil
	case fixedChannels[strings.ToLower(editor.Track)], releaseTrack.MatchString(editor.Track):
		return Revision{Value: editor.Track}, nil
	}
	return Revision{}, &UnresolvedRevisionError{Track: editor.Track, OS: platformOS}
}
