// Package metadata finds identifying metadata (location, device, capture
// time, serial numbers) in source images. Re-encoding drops all of it, so
// the batch reports what a compressed copy no longer carries.
package metadata

import (
	"bytes"
	"errors"
	"io"
	"strings"

	exif "github.com/dsoprea/go-exif/v3"

	"squeeze/pkg/imgutil"
)

type Analysis struct {
	HasGPS       bool
	GPSCount     int
	HasModel     bool
	HasTimestamp bool
	SerialCount  int
	Model        string
	Timestamp    string
}

// Identifying reports whether anything worth stripping was found.
func (a Analysis) Identifying() bool {
	return a.HasGPS || a.HasModel || a.HasTimestamp || a.SerialCount > 0
}

// Categories lists found metadata in display order.
func (a Analysis) Categories() []string {
	cats := []string{}
	if a.HasGPS {
		cats = append(cats, "GPS")
	}
	if a.HasModel {
		cats = append(cats, "Device Model")
	}
	if a.HasTimestamp {
		cats = append(cats, "Timestamp")
	}
	if a.SerialCount > 0 {
		cats = append(cats, "Serial Number")
	}
	return cats
}

func (a *Analysis) merge(other Analysis) {
	a.HasGPS = a.HasGPS || other.HasGPS
	a.GPSCount += other.GPSCount
	a.HasModel = a.HasModel || other.HasModel
	a.HasTimestamp = a.HasTimestamp || other.HasTimestamp
	a.SerialCount += other.SerialCount
	if a.Model == "" {
		a.Model = other.Model
	}
	if a.Timestamp == "" {
		a.Timestamp = other.Timestamp
	}
}

// Inspect analyses data according to its sniffed kind. Kinds without a
// metadata reader yield an empty Analysis.
func Inspect(kind imgutil.Kind, data []byte) (Analysis, error) {
	switch kind {
	case imgutil.KindJPEG, imgutil.KindTIFF, imgutil.KindWebP:
		return analyzeExif(bytes.NewReader(data))
	case imgutil.KindPNG:
		return scanPNG(bytes.NewReader(data))
	default:
		return Analysis{}, nil
	}
}

func analyzeExif(rs io.ReadSeeker) (Analysis, error) {
	analysis := Analysis{}

	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return analysis, err
	}

	tags, _, err := exif.GetFlatExifDataUniversalSearchWithReadSeeker(rs, nil, true)
	if err != nil {
		if isNoExif(err) {
			return analysis, nil
		}
		return analysis, err
	}

	for _, tag := range tags {
		name := tag.TagName
		lower := strings.ToLower(name)

		if strings.HasPrefix(name, "GPS") || strings.Contains(tag.IfdPath, "GPS") {
			analysis.HasGPS = true
			analysis.GPSCount++
		}
		if name == "Model" || name == "CameraModelName" {
			analysis.HasModel = true
			if analysis.Model == "" {
				analysis.Model = strings.TrimSpace(tag.FormattedFirst)
			}
		}
		if name == "DateTimeOriginal" || name == "DateTimeDigitized" || name == "DateTime" {
			analysis.HasTimestamp = true
			if analysis.Timestamp == "" {
				analysis.Timestamp = strings.TrimSpace(tag.FormattedFirst)
			}
		}
		if strings.Contains(lower, "serial") {
			analysis.SerialCount++
		}
	}

	return analysis, nil
}

func isNoExif(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, exif.ErrNoExif) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "no exif")
}
