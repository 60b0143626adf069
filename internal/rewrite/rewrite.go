// Package rewrite normalizes absolute resource references inside an
// extracted site tree so the tree stays internally consistent when it is
// repackaged under a different mount point.
package rewrite

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// attrPattern captures the fixed set of link-bearing attributes across
// anchors, images, scripts, stylesheets, media sources, inline frames and
// form targets. The leading group anchors the attribute name so that
// hyphenated attributes (data-href, data-src) never match; a plain \b
// would accept them as suffixes. Both quote styles are matched; the quote
// character found is the one written back. Unquoted values are left alone.
var attrPattern = regexp.MustCompile(`(?i)(^|[^-\w])(href|src|action|poster|data|background)\s*=\s*("[^"]*"|'[^']*')`)

// schemePattern recognizes values carrying a URL scheme (https:, mailto:,
// file:, ...), which are never rewritten.
var schemePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.\-]*:`)

// RefKind classifies a captured attribute value.
type RefKind int

const (
	KindEmpty RefKind = iota
	KindFragment
	KindProtocolRelative
	KindExternal
	KindRootAbsolute
	KindRelative
)

// Classify sorts a raw attribute value into the kind that decides whether it
// is a rewrite candidate. Only KindRootAbsolute values ever change.
func Classify(value string) RefKind {
	switch {
	case value == "":
		return KindEmpty
	case strings.HasPrefix(value, "#"):
		return KindFragment
	case strings.HasPrefix(value, "//"):
		return KindProtocolRelative
	case schemePattern.MatchString(value):
		return KindExternal
	case strings.HasPrefix(value, "/"):
		return KindRootAbsolute
	default:
		return KindRelative
	}
}

// Result reports the outcome for a single HTML document.
type Result struct {
	Path      string // relative to the content root
	Rewritten int    // references replaced with a relative form
	Skipped   int    // root-absolute references preserved (dangling target)
	Err       error  // decode or write-back failure, nil otherwise
}

// Summary aggregates a whole rewrite pass.
type Summary struct {
	Results   []Result
	Scanned   int // HTML documents visited
	Changed   int // documents written back
	Rewritten int
	Skipped   int
	Failed    []Result // documents with a non-nil Err
}

// Rewriter walks a content root and rewrites in-tree root-absolute
// references to a path relative to each referencing document.
type Rewriter struct {
	root string
}

func New(contentRoot string) *Rewriter {
	return &Rewriter{root: filepath.Clean(contentRoot)}
}

// Rewrite processes every .html/.htm file beneath the content root, one
// document at a time in lexical walk order. Per-document failures are
// collected into the summary; only an inaccessible root is fatal. The
// context is checked between documents, never inside one.
func (r *Rewriter) Rewrite(ctx context.Context) (*Summary, error) {
	info, err := os.Stat(r.root)
	if err != nil {
		return nil, fmt.Errorf("content root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("content root %s is not a directory", r.root)
	}

	sum := &Summary{}
	walkErr := filepath.WalkDir(r.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == r.root {
				return err
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !isHTML(p) {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(r.root, p)
		if err != nil {
			return nil
		}
		res := r.rewriteDocument(p, rel)
		sum.Scanned++
		if res.Err != nil {
			sum.Failed = append(sum.Failed, res)
		} else {
			sum.Rewritten += res.Rewritten
			sum.Skipped += res.Skipped
			if res.Rewritten > 0 {
				sum.Changed++
			}
		}
		sum.Results = append(sum.Results, res)
		return nil
	})
	if walkErr != nil {
		if errors.Is(walkErr, context.Canceled) || errors.Is(walkErr, context.DeadlineExceeded) {
			return sum, walkErr
		}
		return sum, fmt.Errorf("content root: %w", walkErr)
	}
	return sum, nil
}

func isHTML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return true
	}
	return false
}

// rewriteDocument applies the read-transform-write cycle for one file. The
// file is written back only when at least one reference changed, so an
// untouched document keeps its modification time.
func (r *Rewriter) rewriteDocument(absPath, relPath string) Result {
	res := Result{Path: relPath}

	data, err := os.ReadFile(absPath)
	if err != nil {
		res.Err = fmt.Errorf("read: %w", err)
		return res
	}
	if bytes.IndexByte(data, 0) >= 0 {
		res.Err = fmt.Errorf("not a text document")
		return res
	}

	matches := attrPattern.FindAllSubmatchIndex(data, -1)
	if len(matches) == 0 {
		return res
	}

	docDir := filepath.Dir(absPath)
	var out bytes.Buffer
	last := 0
	for _, m := range matches {
		// m[6]:m[7] is the quoted value including its quotes.
		quote := data[m[6]]
		value := string(data[m[6]+1 : m[7]-1])

		if Classify(value) != KindRootAbsolute {
			continue
		}
		replacement, ok := r.relativize(docDir, value)
		if !ok {
			res.Skipped++
			continue
		}
		out.Write(data[last : m[6]+1])
		out.WriteString(replacement)
		out.WriteByte(quote)
		last = m[7]
		res.Rewritten++
	}
	if res.Rewritten == 0 {
		return res
	}
	out.Write(data[last:])

	mode := fs.FileMode(0644)
	if info, err := os.Stat(absPath); err == nil {
		mode = info.Mode()
	}
	if err := os.WriteFile(absPath, out.Bytes(), mode); err != nil {
		res.Err = fmt.Errorf("write: %w", err)
	}
	return res
}

// relativize resolves a root-absolute value against the content root and
// returns the path relative to the referencing document's directory. The
// query/fragment suffix is carried over untouched. It reports false when the
// target does not exist beneath the root, in which case the caller preserves
// the original reference.
func (r *Rewriter) relativize(docDir, value string) (string, bool) {
	pathPart := value
	suffix := ""
	if i := strings.IndexAny(value, "?#"); i >= 0 {
		pathPart, suffix = value[:i], value[i:]
	}

	target := filepath.Join(r.root, filepath.FromSlash(pathPart))
	if target != r.root && !strings.HasPrefix(target, r.root+string(os.PathSeparator)) {
		return "", false
	}
	if _, err := os.Stat(target); err != nil {
		return "", false
	}
	rel, err := filepath.Rel(docDir, target)
	if err != nil {
		return "", false
	}
	return filepath.ToSlash(rel) + suffix, true
}
