// Package zipx materializes a website ZIP archive on disk and locates the
// entry point of the extracted tree.
package zipx

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"
)

// ErrNoIndex is returned when the extracted tree contains no index.html.
var ErrNoIndex = errors.New("no index.html found in archive")

// Extract unpacks the ZIP archive at zipPath into destDir and returns the
// number of files written. Entries whose paths would escape destDir are
// rejected rather than skipped: a crafted archive fails the whole extraction.
func Extract(ctx context.Context, zipPath, destDir string) (int, error) {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		if errors.Is(err, zip.ErrInsecurePath) {
			zr.Close()
			return 0, fmt.Errorf("illegal path in archive: %w", err)
		}
		return 0, fmt.Errorf("open archive: %w", err)
	}
	defer zr.Close()

	cleanDest := filepath.Clean(destDir)
	count := 0
	for _, entry := range zr.File {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		target := filepath.Join(cleanDest, filepath.FromSlash(entry.Name))
		if target != cleanDest && !strings.HasPrefix(target, cleanDest+string(os.PathSeparator)) {
			return count, fmt.Errorf("illegal path in archive: %s", entry.Name)
		}
		if entry.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return count, err
			}
			continue
		}
		if err := writeEntry(entry, target); err != nil {
			return count, fmt.Errorf("extract %s: %w", entry.Name, err)
		}
		count++
	}
	return count, nil
}

func writeEntry(entry *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	rc, err := entry.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	mode := entry.Mode().Perm()
	if mode == 0 {
		mode = 0644
	}
	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// DetectSiteRoot descends into a single nested top-level directory, the
// common layout produced by zipping a site folder rather than its contents.
func DetectSiteRoot(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	if len(entries) == 1 && entries[0].IsDir() {
		return filepath.Join(dir, entries[0].Name()), nil
	}
	return dir, nil
}

// FindIndex locates index.html beneath root, preferring one directly at the
// root and falling back to the first found by a recursive walk. It returns
// the absolute path and the path relative to root.
func FindIndex(root string) (string, string, error) {
	direct := filepath.Join(root, "index.html")
	if _, err := os.Stat(direct); err == nil {
		return direct, "index.html", nil
	}

	var found string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && d.Name() == "index.html" {
			found = p
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", "", err
	}
	if found == "" {
		return "", "", ErrNoIndex
	}
	rel, err := filepath.Rel(root, found)
	if err != nil {
		return "", "", err
	}
	return found, rel, nil
}

// SiteTitle extracts the text of the first <title> element of the document
// at indexPath. Best effort: a missing or unparseable title yields "".
func SiteTitle(indexPath string) string {
	f, err := os.Open(indexPath)
	if err != nil {
		return ""
	}
	defer f.Close()

	doc, err := html.Parse(f)
	if err != nil {
		return ""
	}
	var title string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if title != "" {
			return
		}
		if n.Type == html.ElementNode && n.Data == "title" {
			var sb strings.Builder
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.TextNode {
					sb.WriteString(c.Data)
				}
			}
			title = strings.TrimSpace(sb.String())
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return title
}
