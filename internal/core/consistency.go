package core

import (
	"errors"
	"fmt"

	"matrixci/internal/namer"
)

// DanglingReferenceError is a dependency that names a job no pass produced.
type DanglingReferenceError struct {
	File  string
	JobID string
	Ref   string
}

func (e *DanglingReferenceError) Error() string {
	return fmt.Sprintf("%s#%s depends on %s, which no pass generates", e.File, e.JobID, e.Ref)
}

// CheckReferences verifies that every dependency of every job resolves to
// a job in pipelines. It needs the output of all passes of a run to be
// meaningful.
func CheckReferences(pipelines []*Pipeline) error {
	known := map[string]map[string]bool{}
	for _, p := range pipelines {
		ids := known[p.Path]
		if ids == nil {
			ids = map[string]bool{}
			known[p.Path] = ids
		}
		for _, j := range p.Jobs {
			ids[j.ID] = true
		}
	}

	var errs []error
	for _, p := range pipelines {
		for _, j := range p.Jobs {
			for _, dep := range j.Dependencies {
				path, id, err := namer.Ref(dep).Split()
				if err != nil || !known[path][id] {
					errs = append(errs, &DanglingReferenceError{File: p.Path, JobID: j.ID, Ref: dep})
				}
			}
		}
	}
	return errors.Join(errs...)
}
