package codec

import (
	"encoding/base64"
	"math"
	"net/url"
	"strings"
)

// SizeKB returns the length of b in kilobytes rounded to two decimals.
func SizeKB(b []byte) float64 {
	return bytesToKB(len(b))
}

// LengthKB converts a byte count to kilobytes rounded to two decimals.
func LengthKB(n int64) float64 {
	return roundTo(float64(n)/1024, 2)
}

// PayloadSizeKB measures an encoded payload: a bare base64 body or a data
// URL, either "data:<mime>;base64,<body>" or a percent-encoded
// "data:<mime>,<body>". The envelope is decoded before measuring so the
// result reflects the real byte count, not the larger text.
// Malformed payloads measure 0.
func PayloadSizeKB(payload string) float64 {
	body := strings.TrimSpace(payload)
	if strings.HasPrefix(body, "data:") {
		comma := strings.IndexByte(body, ',')
		if comma < 0 {
			return 0
		}
		header := body[len("data:"):comma]
		body = body[comma+1:]
		if !strings.HasSuffix(strings.ToLower(header), ";base64") {
			plain, err := url.PathUnescape(body)
			if err != nil {
				return 0
			}
			return bytesToKB(len(plain))
		}
	}
	if body == "" {
		return 0
	}

	n, ok := decodedLen(body)
	if !ok {
		return 0
	}
	return bytesToKB(n)
}

func decodedLen(body string) (int, bool) {
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if decoded, err := enc.DecodeString(body); err == nil {
			return len(decoded), true
		}
	}
	return 0, false
}

func bytesToKB(n int) float64 {
	return LengthKB(int64(n))
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
