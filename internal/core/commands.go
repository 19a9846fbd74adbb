package core

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/alessio/shellescape"

	"matrixci/internal/config"
)

// Arg is one argument of a Command.
type Arg interface {
	shell() (string, error)
}

// Word is a literal argument. It is quoted when it holds anything outside
// the shell safe set, otherwise it is emitted as is.
type Word string

// Fragment is shell text passed through untouched, for values that are
// shell by definition such as a platform's editor path.
type Fragment string

// EnvRef expands an environment variable when the job runs.
type EnvRef string

var envRefName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func (w Word) shell() (string, error) {
	if err := singleLine(string(w)); err != nil {
		return "", err
	}
	return shellescape.Quote(string(w)), nil
}

func (f Fragment) shell() (string, error) {
	if err := singleLine(string(f)); err != nil {
		return "", err
	}
	if strings.TrimSpace(string(f)) == "" {
		return "", fmt.Errorf("empty shell fragment")
	}
	return string(f), nil
}

func (e EnvRef) shell() (string, error) {
	if !envRefName.MatchString(string(e)) {
		return "", fmt.Errorf("invalid environment variable name %q", string(e))
	}
	return `"$` + string(e) + `"`, nil
}

func singleLine(s string) error {
	if strings.ContainsAny(s, "\n\r\x00") {
		return fmt.Errorf("argument %q spans more than one line", s)
	}
	return nil
}

// Shell is anything that renders to one line of a job's commands.
type Shell interface {
	Render() (string, error)
}

// Command is a program invocation with typed arguments.
type Command struct {
	Program string
	Args    []Arg
	// Stdout redirects output to a file when set.
	Stdout string
}

func Cmd(program string, args ...Arg) Command {
	return Command{Program: program, Args: args}
}

func (c Command) Render() (string, error) {
	if c.Program == "" {
		return "", fmt.Errorf("command without a program")
	}
	parts := []string{c.Program}
	for _, a := range c.Args {
		s, err := a.shell()
		if err != nil {
			return "", fmt.Errorf("%s: %w", c.Program, err)
		}
		parts = append(parts, s)
	}
	if c.Stdout != "" {
		out, err := Word(c.Stdout).shell()
		if err != nil {
			return "", fmt.Errorf("%s: %w", c.Program, err)
		}
		parts = append(parts, ">", out)
	}
	return strings.Join(parts, " "), nil
}

// RawCommand is a complete command line taken verbatim from configuration.
type RawCommand string

func (r RawCommand) Render() (string, error) {
	return Fragment(r).shell()
}

// StepKind orders the steps of a test job. Steps must appear in
// non-decreasing kind order, execution inside a job is sequential.
type StepKind int

const (
	StepInstallUpmCI StepKind = iota
	StepInstallDownloader
	StepDownloadEditor
	StepCopyCodependencies
	StepRunTests
	StepPack
)

func (k StepKind) String() string {
	switch k {
	case StepInstallUpmCI:
		return "install-upm-ci"
	case StepInstallDownloader:
		return "install-downloader"
	case StepDownloadEditor:
		return "download-editor"
	case StepCopyCodependencies:
		return "copy-codependencies"
	case StepRunTests:
		return "run-tests"
	case StepPack:
		return "pack"
	}
	return fmt.Sprintf("step(%d)", int(k))
}

// Step is one command of a job.
type Step struct {
	Kind StepKind
	Run  Shell
}

// RenderSteps checks the step order and renders every step.
func RenderSteps(steps []Step) ([]string, error) {
	out := make([]string, 0, len(steps))
	for i, s := range steps {
		if i > 0 && s.Kind < steps[i-1].Kind {
			return nil, fmt.Errorf("step %s cannot run after %s", s.Kind, steps[i-1].Kind)
		}
		line, err := s.Run.Render()
		if err != nil {
			return nil, fmt.Errorf("step %s: %w", s.Kind, err)
		}
		out = append(out, line)
	}
	return out, nil
}

func installUpmCI(c config.Constants) Step {
	return Step{StepInstallUpmCI, Cmd("npm", Word("install"), Word("upm-ci-utils@stable"), Word("-g"),
		Word("--registry"), Word(c.NpmRegistryURL))}
}

func installDownloader(c config.Constants) Step {
	return Step{StepInstallDownloader, Cmd("pip", Word("install"), Word("unity-downloader-cli"),
		Word("--index-url"), Word(c.DownloaderIndexURL), Word("--upgrade"))}
}

func downloadEditor(rev config.Revision) Step {
	var args []Arg
	if rev.SourceFile != "" {
		args = append(args, Word("--source-file"), Word(rev.SourceFile))
	} else {
		args = append(args, Word("-u"), Word(rev.Value))
	}
	args = append(args, Word("-c"), Word("editor"), Word("--wait"), Word("--published-only"))
	return Step{StepDownloadEditor, Cmd("unity-downloader-cli", args...)}
}

func copyCodependencies(p config.Platform) Step {
	return Step{StepCopyCodependencies, RawCommand(p.CopyCmd)}
}

// testTemplate runs the template tests; testType is empty for the plain
// test job.
func testTemplate(p config.Platform, t config.Template, testType string) Step {
	args := []Arg{Word("template"), Word("test"), Word("-u"), Fragment(p.EditorPath)}
	if testType != "" {
		args = append(args, Word("--type"), Word(testType))
	}
	args = append(args, Word("--project-path"), Word(t.PackageName))
	return Step{StepRunTests, Cmd("upm-ci", args...)}
}
