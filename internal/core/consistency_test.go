package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matrixci/internal/namer"
)

func TestCheckReferencesFindsDanglingRefs(t *testing.T) {
	pipelines := []*Pipeline{
		{Path: namer.PackagesFilepath(), Jobs: []*Job{{ID: "pack_core"}}},
		{Path: namer.TemplatesFilepath(), Jobs: []*Job{
			{ID: "test_t_win_trunk", Dependencies: []string{".yamato/_packages.yml#pack_core"}},
			{ID: "test_t_win_trunk_dependencies", Dependencies: []string{
				".yamato/_templates.yml#test_t_win_trunk",
				".yamato/_packages.yml#pack_missing",
				".yamato/_templates.yml#pack_core",
				"not-a-ref",
			}},
		}},
	}

	err := CheckReferences(pipelines)
	require.Error(t, err)

	var dangling []string
	for _, e := range err.(interface{ Unwrap() []error }).Unwrap() {
		var d *DanglingReferenceError
		require.True(t, errors.As(e, &d))
		assert.Equal(t, "test_t_win_trunk_dependencies", d.JobID)
		dangling = append(dangling, d.Ref)
	}
	assert.Equal(t, []string{
		".yamato/_packages.yml#pack_missing",
		".yamato/_templates.yml#pack_core",
		"not-a-ref",
	}, dangling)
}

func TestMissingPackReportsDanglingRef(t *testing.T) {
	meta := testMetafile()
	meta.Packages = meta.Packages[:1]

	res, err := NewGenerator(meta, quietLogger()).Run(context.Background())
	require.NoError(t, err)
	require.Empty(t, res.Errors, "each job builds fine on its own")

	err = CheckReferences(res.Pipelines)
	var d *DanglingReferenceError
	require.ErrorAs(t, err, &d)
	assert.Equal(t, ".yamato/_packages.yml#pack_universal", d.Ref)
}
