// Package convert runs the ZIP-to-ZIM pipeline: verify the packager, stage,
// extract, locate the welcome page, rewrite links, package, clean up.
package convert

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/noosed/InvaderZIM/internal/rewrite"
	"github.com/noosed/InvaderZIM/internal/workdir"
	"github.com/noosed/InvaderZIM/internal/zimwriter"
	"github.com/noosed/InvaderZIM/internal/zipx"
)

// Stage identifies a pipeline phase, in execution order.
type Stage int

const (
	StageVerify Stage = iota
	StageStaging
	StageExtract
	StageLocate
	StageRewrite
	StagePackage
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageVerify:
		return "Verifying zimwriterfs"
	case StageStaging:
		return "Preparing staging directory"
	case StageExtract:
		return "Extracting archive"
	case StageLocate:
		return "Locating welcome page"
	case StageRewrite:
		return "Rewriting HTML links"
	case StagePackage:
		return "Creating ZIM file"
	case StageDone:
		return "Complete"
	}
	return "Unknown"
}

// Level tags a reported log line.
type Level int

const (
	LevelInfo Level = iota
	LevelOK
	LevelWarn
	LevelError
	LevelSuccess
)

// Reporter receives progress from a running conversion. Implementations feed
// the TUI log console or the plain-mode logger; the pipeline itself never
// touches presentation state.
type Reporter interface {
	Stage(s Stage)
	Log(level Level, msg string)
	RewriteDone(sum *rewrite.Summary)
}

// Options are the plain input values for one conversion.
type Options struct {
	ZipPath      string
	OutputPath   string
	Title        string
	Description  string
	Language     string
	Creator      string
	Publisher    string
	RewriteLinks bool
	RAMStaging   bool
}

// Packager is the boundary to the external archive-writer tool.
type Packager interface {
	Check(ctx context.Context) (string, error)
	Build(ctx context.Context, job zimwriter.Job, lineFn zimwriter.LineFunc) error
}

// Converter executes the pipeline once.
type Converter struct {
	opts Options
	rep  Reporter

	// Packager defaults to the real zimwriterfs driver; tests substitute a
	// fake.
	Packager Packager
}

func New(opts Options, rep Reporter) *Converter {
	return &Converter{opts: opts, rep: rep, Packager: zimwriter.New()}
}

// Run performs the conversion and returns the output path on success. The
// stages run strictly in order; packaging only ever sees the final on-disk
// state of the rewritten tree.
func (c *Converter) Run(ctx context.Context) (string, error) {
	c.rep.Stage(StageVerify)
	version, err := c.Packager.Check(ctx)
	if err != nil {
		return "", err
	}
	c.rep.Log(LevelOK, "Found "+version)

	c.rep.Stage(StageStaging)
	staging, err := workdir.New("invaderzim_", c.opts.RAMStaging)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := staging.Cleanup(); err != nil {
			c.rep.Log(LevelWarn, fmt.Sprintf("Failed to clean up staging directory: %v", err))
		}
	}()
	if staging.RAMBacked {
		c.rep.Log(LevelInfo, "Staging on RAM-backed filesystem: "+staging.Path)
	} else {
		c.rep.Log(LevelInfo, "Staging directory: "+staging.Path)
	}

	c.rep.Stage(StageExtract)
	c.rep.Log(LevelInfo, "Extracting "+filepath.Base(c.opts.ZipPath))
	count, err := zipx.Extract(ctx, c.opts.ZipPath, staging.Path)
	if err != nil {
		return "", fmt.Errorf("extract: %w", err)
	}
	c.rep.Log(LevelInfo, fmt.Sprintf("Extracted %d files", count))

	siteRoot, err := zipx.DetectSiteRoot(staging.Path)
	if err != nil {
		return "", err
	}
	if siteRoot != staging.Path {
		c.rep.Log(LevelInfo, "Using nested folder: "+filepath.Base(siteRoot))
	}

	c.rep.Stage(StageLocate)
	indexAbs, indexRel, err := zipx.FindIndex(siteRoot)
	if err != nil {
		if errors.Is(err, zipx.ErrNoIndex) {
			return "", fmt.Errorf("no index.html found in the ZIP file")
		}
		return "", err
	}
	c.rep.Log(LevelOK, "Found welcome page: "+indexRel)

	title := c.opts.Title
	if title == "" {
		if title = zipx.SiteTitle(indexAbs); title != "" {
			c.rep.Log(LevelInfo, "Using site title: "+title)
		} else {
			title = zipBaseName(c.opts.ZipPath)
		}
	}

	if c.opts.RewriteLinks {
		c.rep.Stage(StageRewrite)
		sum, err := rewrite.New(siteRoot).Rewrite(ctx)
		if err != nil {
			return "", fmt.Errorf("rewrite links: %w", err)
		}
		c.rep.RewriteDone(sum)
		c.rep.Log(LevelInfo, fmt.Sprintf(
			"Rewrote %d references in %d of %d documents (%d dangling references kept)",
			sum.Rewritten, sum.Changed, sum.Scanned, sum.Skipped))
		for _, failed := range sum.Failed {
			// partial failure is logged, never blocks packaging
			c.rep.Log(LevelWarn, fmt.Sprintf("Skipped %s: %v", failed.Path, failed.Err))
		}
	}

	c.rep.Stage(StagePackage)
	job := zimwriter.Job{
		SiteRoot:    siteRoot,
		OutputPath:  c.opts.OutputPath,
		Welcome:     indexRel,
		Title:       title,
		Description: c.opts.Description,
		Language:    c.opts.Language,
		Creator:     c.opts.Creator,
		Publisher:   c.opts.Publisher,
	}
	if err := c.Packager.Build(ctx, job, func(line string) {
		c.rep.Log(LevelInfo, line)
	}); err != nil {
		return "", err
	}

	c.rep.Stage(StageDone)
	c.rep.Log(LevelSuccess, "ZIM file created: "+c.opts.OutputPath)
	return c.opts.OutputPath, nil
}

func zipBaseName(zipPath string) string {
	base := filepath.Base(zipPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
