// Package loader turns command-line paths into batch input files.
package loader

import (
	"context"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"squeeze/internal/batch"
	"squeeze/internal/codec"
	"squeeze/pkg/imgutil"
)

type Options struct {
	// Exclude is a directory never descended into, typically the output
	// directory when it sits inside an input tree.
	Exclude string
	// Workers bounds concurrent file reads. Zero means runtime.NumCPU().
	Workers int
	// BudgetKB caps the summed size of image files that are read. The first
	// image that would cross it, and every file after it, comes back with
	// Size set and Data nil. Zero means no cap.
	BudgetKB float64
}

type job struct {
	Path    string
	RelPath string
	Size    int64
	MIME    string
	Read    bool
}

// Load expands paths (files or directory trees) and reads the image files
// among them. Files keep the order given on the command line; directory
// entries follow fs.WalkDir's lexical order. Non-images and files past the
// budget are returned unread so the batch can report them.
func Load(ctx context.Context, paths []string, opts Options) ([]batch.File, error) {
	var excludeAbs string
	if opts.Exclude != "" {
		if abs, err := filepath.Abs(opts.Exclude); err == nil {
			excludeAbs = filepath.Clean(abs)
		}
	}

	var jobs []job
	for _, root := range paths {
		found, err := expand(root, excludeAbs)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, found...)
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	if err := classify(ctx, jobs, workers); err != nil {
		return nil, err
	}
	plan(jobs, opts.BudgetKB)

	files := make([]batch.File, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, j := range jobs {
		files[i] = batch.File{Name: j.RelPath, MIMEType: j.MIME, Size: j.Size}
		if !j.Read {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(j.Path)
			if err != nil {
				return fmt.Errorf("read %s: %w", j.RelPath, err)
			}
			files[i].Data = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}

// classify sets each job's media type from its extension, falling back to
// the file header when the extension names nothing.
func classify(ctx context.Context, jobs []job, workers int) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range jobs {
		jobs[i].MIME = mimeFromExt(jobs[i].Path)
		if jobs[i].MIME != "" {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			kind, err := sniffFile(jobs[i].Path)
			if err != nil {
				return fmt.Errorf("sniff %s: %w", jobs[i].RelPath, err)
			}
			jobs[i].MIME = kind.MIME()
			return nil
		})
	}
	return g.Wait()
}

// plan marks the images to read. Once one image would cross the budget,
// nothing after it is read.
func plan(jobs []job, budgetKB float64) {
	total := 0.0
	for i := range jobs {
		if !imgutil.IsImageMIME(jobs[i].MIME) {
			continue
		}
		sizeKB := codec.LengthKB(jobs[i].Size)
		if budgetKB > 0 && total+sizeKB > budgetKB {
			return
		}
		total += sizeKB
		jobs[i].Read = true
	}
}

func sniffFile(path string) (imgutil.Kind, error) {
	f, err := os.Open(path)
	if err != nil {
		return imgutil.KindUnknown, err
	}
	defer f.Close()

	kind, err := imgutil.SniffReader(f)
	if err != nil {
		// Empty and one-byte files have no header to recognise.
		return imgutil.KindUnknown, nil
	}
	return kind, nil
}

func expand(root string, excludeAbs string) ([]job, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	if !info.IsDir() {
		return []job{{Path: absRoot, RelPath: filepath.Base(absRoot), Size: info.Size()}}, nil
	}

	var jobs []job
	fsys := os.DirFS(absRoot)
	err = fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		fullPath := filepath.Join(absRoot, path)
		if d.IsDir() {
			if excludeAbs != "" && path != "." && isWithin(fullPath, excludeAbs) {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}

		jobs = append(jobs, job{Path: fullPath, RelPath: filepath.ToSlash(path), Size: fi.Size()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

// mimeFromExt guesses the media type from the extension. Unknown
// extensions yield "".
func mimeFromExt(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return ""
	}
	return mime.TypeByExtension(ext)
}

func isWithin(path string, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	return true
}
