package assets

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestMimeFromExt(t *testing.T) {
	tests := []struct {
		ext  string
		want string
	}{
		{".svg", "image/svg+xml"},
		{".md", "text/markdown; charset=utf-8"},
		{".qqqqqq", "application/octet-stream"},
	}
	for _, tt := range tests {
		if got := mimeFromExt(tt.ext); got != tt.want {
			t.Errorf("mimeFromExt(%q) = %q, want %q", tt.ext, got, tt.want)
		}
	}
}

func TestLandingHTML(t *testing.T) {
	got, err := LandingHTML("Workspace", "https://gw.example.com/")
	if err != nil {
		t.Fatalf("LandingHTML() error = %v", err)
	}
	html := string(got)

	if !strings.Contains(html, "<title>Workspace</title>") {
		t.Error("missing title")
	}
	if !strings.Contains(html, "<h1") {
		t.Error("markdown heading was not rendered")
	}
	if !strings.Contains(html, "https://gw.example.com/mcp") {
		t.Error("base URL was not substituted")
	}
	if strings.Contains(html, baseURLPlaceholder) {
		t.Error("placeholder left in output")
	}
}

func TestFileServer_ServesIcon(t *testing.T) {
	rr := httptest.NewRecorder()
	FileServer().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/"+IconPath, nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "image/svg+xml" {
		t.Errorf("Content-Type = %q, want image/svg+xml", ct)
	}
	if !strings.Contains(rr.Body.String(), "<svg") {
		t.Error("body is not the icon")
	}
}

func TestFileServer_Missing(t *testing.T) {
	rr := httptest.NewRecorder()
	FileServer().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/nope.png", nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}
