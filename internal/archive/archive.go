// Package archive bundles compressed records into a zip and names single
// downloads the same way.
package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"squeeze/internal/batch"
)

var (
	ErrSerialize     = errors.New("archive serialization failed")
	ErrEmpty         = errors.New("no compressed images to archive")
	ErrNotCompressed = errors.New("record has no compressed output")
)

// EntryName derives "<base>_Q<quality>.jpg" from an original file name.
func EntryName(original string, quality int) string {
	base := original
	if idx := strings.LastIndexAny(base, `/\`); idx >= 0 {
		base = base[idx+1:]
	}
	stem := strings.TrimSuffix(base, path.Ext(base))
	if stem == "" {
		stem = "image"
	}
	return fmt.Sprintf("%s_Q%d.jpg", stem, quality)
}

// ArchiveName is the file name of the bundle for quality.
func ArchiveName(quality int) string {
	return fmt.Sprintf("compressed_images_Q%d.zip", quality)
}

// Single returns the download name and bytes of one record.
func Single(rec batch.Record, quality int) (string, []byte, error) {
	if !rec.HasOutput() {
		return "", nil, fmt.Errorf("%s: %w", rec.Name, ErrNotCompressed)
	}
	return EntryName(rec.Name, quality), rec.Compressed, nil
}

// Build zips every record holding compressed output, skipping the rest.
// Callers are expected to check Stats().AllDone first; records still in
// flight contribute whatever output they held at call time.
func Build(records []batch.Record, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := build(&buf, records, quality); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write builds the archive in memory and copies it to w only once it is
// complete, so a failed build never leaves a partial file behind.
func Write(w io.Writer, records []batch.Record, quality int) error {
	data, err := Build(records, quality)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("%w: %v", ErrSerialize, err)
	}
	return nil
}

func build(w io.Writer, records []batch.Record, quality int) error {
	zw := zip.NewWriter(w)
	names := newNameSet()
	modified := time.Now()

	added := 0
	for _, rec := range records {
		if !rec.HasOutput() {
			continue
		}

		header := &zip.FileHeader{
			Name:     names.claim(EntryName(rec.Name, quality)),
			Method:   zip.Store,
			Modified: modified,
		}
		fw, err := zw.CreateHeader(header)
		if err != nil {
			_ = zw.Close()
			return fmt.Errorf("%w: %s: %v", ErrSerialize, header.Name, err)
		}
		if _, err := fw.Write(rec.Compressed); err != nil {
			_ = zw.Close()
			return fmt.Errorf("%w: %s: %v", ErrSerialize, header.Name, err)
		}
		added++
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrSerialize, err)
	}
	if added == 0 {
		return ErrEmpty
	}
	return nil
}

// nameSet resolves duplicate entry names with " - dupN" suffixes.
type nameSet struct {
	taken    map[string]bool
	counters map[string]int
}

func newNameSet() *nameSet {
	return &nameSet{taken: make(map[string]bool), counters: make(map[string]int)}
}

func (n *nameSet) claim(name string) string {
	if !n.taken[name] {
		n.taken[name] = true
		return name
	}

	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	counter := n.counters[name]
	if counter == 0 {
		counter = 1
	}
	for {
		candidate := fmt.Sprintf("%s - dup%d%s", stem, counter, ext)
		if !n.taken[candidate] {
			n.counters[name] = counter + 1
			n.taken[candidate] = true
			return candidate
		}
		counter++
	}
}
