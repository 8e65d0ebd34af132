package metadata

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"strings"
)

var pngSignature = []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a}

// maxPNGChunk bounds the chunks read into memory; larger ones are skipped.
const maxPNGChunk = 8 << 20

func scanPNG(r io.Reader) (Analysis, error) {
	analysis := Analysis{}
	br := bufio.NewReader(r)

	sig := make([]byte, 8)
	if _, err := io.ReadFull(br, sig); err != nil {
		return analysis, err
	}
	if !bytes.Equal(sig, pngSignature) {
		return analysis, errors.New("invalid PNG signature")
	}

	for {
		lenBuf := make([]byte, 4)
		if _, err := io.ReadFull(br, lenBuf); err != nil {
			if err == io.EOF {
				return analysis, nil
			}
			return analysis, err
		}
		length := binary.BigEndian.Uint32(lenBuf)

		chunkType := make([]byte, 4)
		if _, err := io.ReadFull(br, chunkType); err != nil {
			return analysis, err
		}
		chunkName := string(chunkType)

		switch {
		case (chunkName == "tEXt" || chunkName == "zTXt" || chunkName == "iTXt" || chunkName == "eXIf") && length <= maxPNGChunk:
			data := make([]byte, length)
			if _, err := io.ReadFull(br, data); err != nil {
				return analysis, err
			}
			if _, err := io.CopyN(io.Discard, br, 4); err != nil {
				return analysis, err
			}
			if chunkName == "eXIf" {
				if exifAnalysis, err := analyzeExif(bytes.NewReader(data)); err == nil {
					analysis.merge(exifAnalysis)
				}
				continue
			}
			if key := textKey(data); key != "" {
				applyTextKey(&analysis, key)
			}
		case chunkName == "tIME":
			analysis.HasTimestamp = true
			if _, err := io.CopyN(io.Discard, br, int64(length)+4); err != nil {
				return analysis, err
			}
		default:
			if _, err := io.CopyN(io.Discard, br, int64(length)+4); err != nil {
				return analysis, err
			}
		}

		if chunkName == "IEND" {
			return analysis, nil
		}
	}
}

func textKey(data []byte) string {
	idx := bytes.IndexByte(data, 0)
	if idx <= 0 {
		return ""
	}
	return string(data[:idx])
}

func applyTextKey(analysis *Analysis, key string) {
	lower := strings.ToLower(key)
	if strings.Contains(lower, "gps") || strings.Contains(lower, "latitude") || strings.Contains(lower, "longitude") {
		analysis.HasGPS = true
	}
	if strings.Contains(lower, "model") || strings.Contains(lower, "make") {
		analysis.HasModel = true
	}
	if strings.Contains(lower, "date") || strings.Contains(lower, "time") {
		analysis.HasTimestamp = true
	}
	if strings.Contains(lower, "serial") {
		analysis.SerialCount++
	}
}
