package imgutil

import (
	"bytes"
	"testing"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want Kind
	}{
		{name: "jpeg", data: []byte{0xff, 0xd8, 0xff, 0xe0, 0, 0x10, 'J', 'F', 'I', 'F'}, want: KindJPEG},
		{name: "png", data: []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0, 0, 0, 0x0d}, want: KindPNG},
		{name: "gif", data: []byte("GIF89a\x01\x00\x01\x00"), want: KindGIF},
		{name: "webp", data: []byte("RIFF\x24\x00\x00\x00WEBPVP8 "), want: KindWebP},
		{name: "bmp", data: []byte("BM\x46\x00\x00\x00\x00\x00"), want: KindBMP},
		{name: "tiff", data: []byte{0x49, 0x49, 0x2a, 0x00, 8, 0, 0, 0}, want: KindTIFF},
		{name: "riff without webp", data: []byte("RIFF\x24\x00\x00\x00WAVEfmt "), want: KindUnknown},
		{name: "text", data: []byte("hello, world"), want: KindUnknown},
		{name: "too short", data: []byte{0xff}, want: KindUnknown},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Detect(tc.data); got != tc.want {
				t.Fatalf("Detect() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSniffReaderShortInput(t *testing.T) {
	kind, err := SniffReader(bytes.NewReader([]byte("GIF89a")))
	if err != nil {
		t.Fatalf("SniffReader: %v", err)
	}
	if kind != KindGIF {
		t.Fatalf("kind = %v, want gif", kind)
	}

	if _, err := SniffReader(bytes.NewReader(nil)); err == nil {
		t.Fatal("expected error for empty reader")
	}
}

func TestIsImageMIME(t *testing.T) {
	cases := map[string]bool{
		"image/jpeg":               true,
		"IMAGE/PNG":                true,
		"image/svg+xml; charset=x": true,
		"text/plain":               false,
		"application/octet-stream": false,
		"":                         false,
	}
	for mimeType, want := range cases {
		if got := IsImageMIME(mimeType); got != want {
			t.Errorf("IsImageMIME(%q) = %v, want %v", mimeType, got, want)
		}
	}
}

func TestKindMIME(t *testing.T) {
	if got := KindJPEG.MIME(); got != "image/jpeg" {
		t.Fatalf("MIME = %q", got)
	}
	if got := KindUnknown.MIME(); got != "" {
		t.Fatalf("MIME = %q, want empty", got)
	}
}
