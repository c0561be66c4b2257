package inference

import "testing"

func TestMediaTypeFromName(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"photo.png":   "image/png",
		"PHOTO.JPG":   "image/jpeg",
		"scan.jpeg":   "image/jpeg",
		"anim.gif":    "image/gif",
		"pic.webp":    "image/webp",
		"iphone.HEIC": "image/heic",
		"doc.pdf":     DefaultMediaType,
		"noext":       DefaultMediaType,
		"":            DefaultMediaType,
	}

	for name, want := range tests {
		if got := MediaTypeFromName(name); got != want {
			t.Errorf("MediaTypeFromName(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestResolveMediaType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		declared, name, want string
	}{
		{"image/png", "x.jpg", "image/png"},
		{"Image/WEBP; charset=binary", "x", "image/webp"},
		{"application/octet-stream", "x.gif", "image/gif"},
		{"", "x.heif", "image/heif"},
		{"  ", "x", DefaultMediaType},
	}

	for _, tt := range tests {
		if got := ResolveMediaType(tt.declared, tt.name); got != tt.want {
			t.Errorf("ResolveMediaType(%q, %q) = %q, want %q", tt.declared, tt.name, got, tt.want)
		}
	}
}
