package convert

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noosed/InvaderZIM/internal/rewrite"
	"github.com/noosed/InvaderZIM/internal/zimwriter"
)

type fakePackager struct {
	checkErr error
	buildErr error
	job      zimwriter.Job
	built    bool
	// inspect lets a test look at the site tree exactly as the packager
	// would see it.
	inspect func(job zimwriter.Job)
}

func (f *fakePackager) Check(ctx context.Context) (string, error) {
	if f.checkErr != nil {
		return "", f.checkErr
	}
	return "zimwriterfs 3.1.1", nil
}

func (f *fakePackager) Build(ctx context.Context, job zimwriter.Job, lineFn zimwriter.LineFunc) error {
	f.job = job
	f.built = true
	if f.inspect != nil {
		f.inspect(job)
	}
	if lineFn != nil {
		lineFn("packaging")
	}
	return f.buildErr
}

type recordingReporter struct {
	stages  []Stage
	lines   []string
	summary *rewrite.Summary
}

func (r *recordingReporter) Stage(s Stage)                  { r.stages = append(r.stages, s) }
func (r *recordingReporter) Log(_ Level, msg string)        { r.lines = append(r.lines, msg) }
func (r *recordingReporter) RewriteDone(s *rewrite.Summary) { r.summary = s }

func makeZip(t *testing.T, files map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "site.zip")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func defaultOptions(t *testing.T, zipPath string) Options {
	return Options{
		ZipPath:      zipPath,
		OutputPath:   filepath.Join(t.TempDir(), "out.zim"),
		Title:        "Test Site",
		Language:     "eng",
		Creator:      "invaderzim",
		Publisher:    "invaderzim",
		RewriteLinks: true,
	}
}

func TestRunFullPipeline(t *testing.T) {
	zipPath := makeZip(t, map[string]string{
		"index.html":      `<html><head><title>Zipped</title></head><body><img src="/assets/logo.png"></body></html>`,
		"assets/logo.png": "png",
	})

	rep := &recordingReporter{}
	conv := New(defaultOptions(t, zipPath), rep)
	pkg := &fakePackager{}
	pkg.inspect = func(job zimwriter.Job) {
		// the packager must see the rewritten tree
		data, err := os.ReadFile(filepath.Join(job.SiteRoot, "index.html"))
		require.NoError(t, err)
		assert.Contains(t, string(data), `src="assets/logo.png"`)
	}
	conv.Packager = pkg

	out, err := conv.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, conv.opts.OutputPath, out)
	assert.True(t, pkg.built)
	assert.Equal(t, "index.html", pkg.job.Welcome)
	assert.Equal(t, "Test Site", pkg.job.Title)

	require.NotNil(t, rep.summary)
	assert.Equal(t, 1, rep.summary.Rewritten)
	assert.Equal(t, []Stage{
		StageVerify, StageStaging, StageExtract, StageLocate,
		StageRewrite, StagePackage, StageDone,
	}, rep.stages)

	// staging directory cleaned up
	_, err = os.Stat(pkg.job.SiteRoot)
	assert.True(t, os.IsNotExist(err))
}

func TestRunNestedSiteRoot(t *testing.T) {
	zipPath := makeZip(t, map[string]string{
		"mysite/index.html": "<html></html>",
		"mysite/a.css":      "body{}",
	})

	rep := &recordingReporter{}
	conv := New(defaultOptions(t, zipPath), rep)
	pkg := &fakePackager{}
	conv.Packager = pkg

	_, err := conv.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "mysite", filepath.Base(pkg.job.SiteRoot))
	assert.Equal(t, "index.html", pkg.job.Welcome)
}

func TestRunTitleFromSite(t *testing.T) {
	zipPath := makeZip(t, map[string]string{
		"index.html": "<html><head><title>Site Of Tests</title></head></html>",
	})

	opts := defaultOptions(t, zipPath)
	opts.Title = ""
	conv := New(opts, &recordingReporter{})
	pkg := &fakePackager{}
	conv.Packager = pkg

	_, err := conv.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Site Of Tests", pkg.job.Title)
}

func TestRunTitleFallsBackToZipName(t *testing.T) {
	zipPath := makeZip(t, map[string]string{
		"index.html": "<html></html>",
	})

	opts := defaultOptions(t, zipPath)
	opts.Title = ""
	conv := New(opts, &recordingReporter{})
	pkg := &fakePackager{}
	conv.Packager = pkg

	_, err := conv.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "site", pkg.job.Title)
}

func TestRunNoIndex(t *testing.T) {
	zipPath := makeZip(t, map[string]string{"page.html": "<html></html>"})

	conv := New(defaultOptions(t, zipPath), &recordingReporter{})
	pkg := &fakePackager{}
	conv.Packager = pkg

	_, err := conv.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no index.html")
	assert.False(t, pkg.built)
}

func TestRunRewriteDisabled(t *testing.T) {
	zipPath := makeZip(t, map[string]string{
		"index.html": `<a href="/x.html">x</a>`,
		"x.html":     "x",
	})

	opts := defaultOptions(t, zipPath)
	opts.RewriteLinks = false
	rep := &recordingReporter{}
	conv := New(opts, rep)
	pkg := &fakePackager{}
	pkg.inspect = func(job zimwriter.Job) {
		data, err := os.ReadFile(filepath.Join(job.SiteRoot, "index.html"))
		require.NoError(t, err)
		assert.Equal(t, `<a href="/x.html">x</a>`, string(data))
	}
	conv.Packager = pkg

	_, err := conv.Run(context.Background())
	require.NoError(t, err)
	assert.Nil(t, rep.summary)
	assert.NotContains(t, rep.stages, StageRewrite)
}

func TestRunVerifyFailureStopsEarly(t *testing.T) {
	zipPath := makeZip(t, map[string]string{"index.html": "x"})

	conv := New(defaultOptions(t, zipPath), &recordingReporter{})
	pkg := &fakePackager{checkErr: zimwriter.ErrNotInstalled}
	conv.Packager = pkg

	_, err := conv.Run(context.Background())
	assert.ErrorIs(t, err, zimwriter.ErrNotInstalled)
	assert.False(t, pkg.built)
}

func TestRunPackagerFailure(t *testing.T) {
	zipPath := makeZip(t, map[string]string{"index.html": "x"})

	conv := New(defaultOptions(t, zipPath), &recordingReporter{})
	pkg := &fakePackager{buildErr: errors.New("exit status 1")}
	conv.Packager = pkg

	_, err := conv.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exit status 1")
}
