// Package zimwriter drives the external zimwriterfs tool, which performs
// the actual ZIM encoding, clustering, compression and indexing. The tool is
// consumed purely through its command line, exit code and output stream.
package zimwriter

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	_ "embed"
)

// DefaultTimeout bounds a single packaging run.
const DefaultTimeout = 10 * time.Minute

// illustrationName is written into the site root so zimwriterfs finds its
// mandatory illustration even when the site ships none.
const illustrationName = "invaderzim_illustration.png"

//go:embed illustration.png
var illustrationPNG []byte

// ErrNotInstalled is returned by Check when zimwriterfs is not on PATH.
var ErrNotInstalled = errors.New("zimwriterfs not found in PATH (install with: sudo apt install zim-tools)")

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// SafeName derives the ZIM name metadata from a human title.
func SafeName(title string) string {
	return strings.ToLower(unsafeNameChars.ReplaceAllString(title, "_"))
}

// Job describes one packaging run. SiteRoot must already contain the final
// on-disk state of every file.
type Job struct {
	SiteRoot    string
	OutputPath  string
	Welcome     string // welcome page path relative to SiteRoot
	Title       string
	Description string
	Language    string
	Name        string // derived from Title when empty
	Creator     string
	Publisher   string
}

// LineFunc receives each line of the tool's merged stdout/stderr.
type LineFunc func(line string)

type commandRunner func(ctx context.Context, name string, args []string, lineFn LineFunc) error

// Writer invokes zimwriterfs.
type Writer struct {
	bin     string
	timeout time.Duration
	run     commandRunner
}

func New() *Writer {
	return &Writer{bin: "zimwriterfs", timeout: DefaultTimeout, run: runCommand}
}

// Check verifies the tool is installed and returns its version string.
func (w *Writer) Check(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var version strings.Builder
	err := w.run(ctx, w.bin, []string{"--version"}, func(line string) {
		if version.Len() == 0 {
			version.WriteString(line)
		}
	})
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", ErrNotInstalled
		}
		return "", fmt.Errorf("verify zimwriterfs: %w", err)
	}
	return strings.TrimSpace(version.String()), nil
}

// Build runs zimwriterfs over the job's site root, streaming output lines to
// lineFn. The embedded placeholder illustration is written into the site
// root first; zimwriterfs refuses to run without one.
func (w *Writer) Build(ctx context.Context, job Job, lineFn LineFunc) error {
	if err := writeIllustration(job.SiteRoot); err != nil {
		return fmt.Errorf("write illustration: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	var tail tailBuffer
	err := w.run(ctx, w.bin, w.args(job), func(line string) {
		tail.add(line)
		if lineFn != nil {
			lineFn(line)
		}
	})
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("zimwriterfs timed out after %s", w.timeout)
		}
		if errors.Is(err, exec.ErrNotFound) {
			return ErrNotInstalled
		}
		if t := tail.String(); t != "" {
			return fmt.Errorf("zimwriterfs: %w\n%s", err, t)
		}
		return fmt.Errorf("zimwriterfs: %w", err)
	}
	return nil
}

// args assembles the full command line, covering every argument zimwriterfs
// treats as mandatory.
func (w *Writer) args(job Job) []string {
	name := job.Name
	if name == "" {
		name = SafeName(job.Title)
	}
	description := job.Description
	if description == "" {
		description = job.Title
	}
	return []string{
		"--welcome=" + job.Welcome,
		"--illustration=" + illustrationName,
		"--language=" + job.Language,
		"--name=" + name,
		"--title=" + job.Title,
		"--description=" + description,
		"--creator=" + job.Creator,
		"--publisher=" + job.Publisher,
		"--skip-libmagic-check",
		job.SiteRoot,
		job.OutputPath,
	}
}

func writeIllustration(siteRoot string) error {
	return os.WriteFile(filepath.Join(siteRoot, illustrationName), illustrationPNG, 0644)
}

// runCommand executes the tool with stdout and stderr merged into a single
// line stream.
func runCommand(ctx context.Context, name string, args []string, lineFn LineFunc) error {
	if _, err := exec.LookPath(name); err != nil {
		return err
	}
	cmd := exec.CommandContext(ctx, name, args...)

	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pw.Close()
		pr.Close()
		return err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		scanner := bufio.NewScanner(pr)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			lineFn(scanner.Text())
		}
	}()

	err := cmd.Wait()
	pw.Close()
	<-done
	pr.Close()
	return err
}

// tailBuffer keeps the last few output lines for diagnostics on failure.
type tailBuffer struct {
	lines []string
}

const tailSize = 20

func (t *tailBuffer) add(line string) {
	t.lines = append(t.lines, line)
	if len(t.lines) > tailSize {
		t.lines = t.lines[1:]
	}
}

func (t *tailBuffer) String() string {
	return strings.Join(t.lines, "\n")
}
