package core

import (
	"context"
	"fmt"
	"runtime"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"matrixci/internal/config"
	"matrixci/internal/namer"
)

// Pass names, one per output file
const (
	PassPackages      = "packages"
	PassEditorPriming = "editor-priming"
	PassTemplates     = "templates"
)

// JobError is a job that could not be built. The rest of the run goes on.
type JobError struct {
	Pass   string
	JobID  string // empty when the inputs were too broken to name the job
	Labels logrus.Fields
	Err    error
}

func (e *JobError) Error() string {
	if e.JobID != "" {
		return fmt.Sprintf("%s: job %s: %v", e.Pass, e.JobID, e.Err)
	}
	return fmt.Sprintf("%s: %v: %v", e.Pass, e.Labels, e.Err)
}

func (e *JobError) Unwrap() error {
	return e.Err
}

// Result of one generation run. Pipelines are always in pass order:
// packages, editor priming, templates.
type Result struct {
	Pipelines []*Pipeline
	Errors    []*JobError
}

// Pipeline returns the pipeline written to path, or nil.
func (r *Result) Pipeline(path string) *Pipeline {
	for _, p := range r.Pipelines {
		if p.Path == path {
			return p
		}
	}
	return nil
}

// JobCount is the number of jobs built across all pipelines.
func (r *Result) JobCount() int {
	n := 0
	for _, p := range r.Pipelines {
		n += len(p.Jobs)
	}
	return n
}

// Generator runs every pass over a metafile.
type Generator struct {
	Meta        *config.Metafile
	Logger      *logrus.Logger
	Scheduler   *Scheduler
	Parallelism int
}

func NewGenerator(meta *config.Metafile, logger *logrus.Logger) *Generator {
	if logger == nil {
		logger = logrus.New()
	}
	return &Generator{
		Meta:        meta,
		Logger:      logger,
		Scheduler:   NewScheduler(),
		Parallelism: runtime.GOMAXPROCS(0),
	}
}

type task struct {
	pass   string
	id     string
	labels logrus.Fields
	build  func() (*Job, error)
}

type outcome struct {
	job *Job
	err error
}

// Run builds every job. Jobs are independent, so they are built in
// parallel and collected by position; the output does not depend on
// scheduling. Only a cancelled context fails the whole run.
func (g *Generator) Run(ctx context.Context) (*Result, error) {
	tasks := g.tasks()
	outcomes := make([]outcome, len(tasks))

	eg, ctx := errgroup.WithContext(ctx)
	if g.Parallelism > 0 {
		eg.SetLimit(g.Parallelism)
	}
	for i := range tasks {
		i := i
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			job, err := tasks[i].build()
			outcomes[i] = outcome{job: job, err: err}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	res := &Result{}
	byPass := map[string]*Pipeline{}
	for _, pass := range []struct{ name, path string }{
		{PassPackages, namer.PackagesFilepath()},
		{PassEditorPriming, namer.EditorPrimingFilepath()},
		{PassTemplates, namer.TemplatesFilepath()},
	} {
		p := &Pipeline{Path: pass.path, Jobs: []*Job{}}
		byPass[pass.name] = p
		res.Pipelines = append(res.Pipelines, p)
	}

	seen := map[string]bool{}
	for i, t := range tasks {
		o := outcomes[i]
		if o.err == nil && seen[o.job.ID] {
			o.err = fmt.Errorf("duplicate job id, the same input is listed twice")
		}
		if o.err != nil {
			g.Logger.WithFields(t.labels).WithField("pass", t.pass).Warnf("cannot build job: %v", o.err)
			res.Errors = append(res.Errors, &JobError{Pass: t.pass, JobID: t.id, Labels: t.labels, Err: o.err})
			continue
		}
		seen[o.job.ID] = true
		g.Logger.WithField("pass", t.pass).Debugf("built job %s", o.job.ID)
		byPass[t.pass].Jobs = append(byPass[t.pass].Jobs, o.job)
	}

	for _, p := range res.Pipelines {
		g.Logger.WithField("file", p.Path).Infof("generated %d jobs", len(p.Jobs))
	}
	return res, nil
}

type resolved[T any] struct {
	val T
	err error
}

func resolveAll[T any](recs []config.Record, fn func(int, config.Record) (T, error)) []resolved[T] {
	out := make([]resolved[T], len(recs))
	for i, r := range recs {
		v, err := fn(i, r)
		out[i] = resolved[T]{val: v, err: err}
	}
	return out
}

// tasks lists every job of every pass in output order.
func (g *Generator) tasks() []task {
	m := g.Meta
	c := m.Constants
	packages := resolveAll(m.Packages, config.NewPackage)
	templates := resolveAll(m.Templates, config.NewTemplate)
	platforms := resolveAll(m.Platforms, config.NewPlatform)
	editors := resolveAll(m.Editors, config.NewEditor)

	var tasks []task

	for i, pkg := range packages {
		pkg := pkg
		labels := logrus.Fields{"package": label(m.Packages[i], "id", i)}
		if pkg.err != nil {
			tasks = append(tasks, failed(PassPackages, labels, pkg.err))
			continue
		}
		tasks = append(tasks, task{
			pass:   PassPackages,
			id:     namer.PackageJobIDPack(pkg.val.ID),
			labels: labels,
			build:  func() (*Job, error) { return BuildPack(c, pkg.val) },
		})
	}

	for _, e := range editors {
		e := e
		if e.err != nil || !config.IsCustomRevision(e.val.Track) {
			// a broken editor record is reported once, by the templates pass
			continue
		}
		for pi, p := range platforms {
			p := p
			labels := logrus.Fields{"track": e.val.Track, "platform": label(m.Platforms[pi], "os", pi)}
			if p.err != nil {
				tasks = append(tasks, failed(PassEditorPriming, labels, p.err))
				continue
			}
			tasks = append(tasks, task{
				pass:   PassEditorPriming,
				id:     namer.EditorJobID(e.val.Track, p.val.OS),
				labels: labels,
				build:  func() (*Job, error) { return BuildEditorPriming(c, e.val, p.val) },
			})
		}
	}

	for _, tr := range g.Scheduler.Triples(len(templates), len(platforms), len(editors)) {
		t, p, e := templates[tr.Template], platforms[tr.Platform], editors[tr.Editor]
		labels := logrus.Fields{
			"template": label(m.Templates[tr.Template], "id", tr.Template),
			"platform": label(m.Platforms[tr.Platform], "os", tr.Platform),
			"track":    label(m.Editors[tr.Editor], "track", tr.Editor),
		}
		if err := firstErr(t.err, p.err, e.err); err != nil {
			tasks = append(tasks, failed(PassTemplates, labels, err))
			continue
		}
		tasks = append(tasks,
			task{
				pass:   PassTemplates,
				id:     namer.TemplateTestID(t.val.ID, p.val.OS, e.val.Track),
				labels: labels,
				build:  func() (*Job, error) { return BuildTest(c, t.val, p.val, e.val) },
			},
			task{
				pass:   PassTemplates,
				id:     namer.TemplateTestDependenciesID(t.val.ID, p.val.OS, e.val.Track),
				labels: labels,
				build:  func() (*Job, error) { return BuildTestDependencies(c, t.val, p.val, e.val) },
			},
		)
	}
	return tasks
}

func failed(pass string, labels logrus.Fields, err error) task {
	return task{pass: pass, labels: labels, build: func() (*Job, error) { return nil, err }}
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// label names a record in logs even when it failed validation.
func label(r config.Record, key string, index int) string {
	if v, ok := r[key]; ok && v != nil && v != "" {
		return fmt.Sprint(v)
	}
	return fmt.Sprintf("#%d", index)
}
