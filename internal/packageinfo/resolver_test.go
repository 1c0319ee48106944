package packageinfo

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	apperrors "updateclient/internal/errors"
)

const registryDoc = `{
	"name": "my-app",
	"dist-tags": {"latest": "1.2.0"},
	"versions": {
		"1.0.0": {}, "1.1.0": {}, "1.2.0": {}, "1.3.0-beta": {}, "0.0.0-main": {}
	}
}`

func TestNewResolver(t *testing.T) {
	r := NewResolver()
	if r.httpClient == nil {
		t.Fatal("httpClient should not be nil")
	}
	if r.RegistryURL() != DefaultRegistryURL {
		t.Errorf("RegistryURL() = %q, want %q", r.RegistryURL(), DefaultRegistryURL)
	}
}

func TestNewResolverWithOptions(t *testing.T) {
	customClient := &http.Client{Timeout: 10 * time.Second}
	r := NewResolver(WithHTTPClient(customClient), WithRegistryURL("https://npm.example.com"))

	if r.httpClient != customClient {
		t.Error("custom HTTP client not applied")
	}
	if r.RegistryURL() != "https://npm.example.com/" {
		t.Errorf("RegistryURL() = %q, want trailing slash ensured", r.RegistryURL())
	}

	r = NewResolver(WithRegistryURL("   "))
	if r.RegistryURL() != DefaultRegistryURL {
		t.Errorf("blank override should keep default, got %q", r.RegistryURL())
	}
}

func TestIsReleaseHosted(t *testing.T) {
	tests := map[string]bool{
		"https://github.com/acme/app": true,
		"":                            false,
		"https://gitlab.com/acme/app": false,
		"http://github.com/acme/app":  false,
	}
	for source, want := range tests {
		if got := IsReleaseHosted(source); got != want {
			t.Errorf("IsReleaseHosted(%q) = %v, want %v", source, got, want)
		}
	}
}

func TestResolveLatestFromRegistry(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/my-app" {
			t.Errorf("unexpected path: %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		if ua := r.Header.Get("User-Agent"); ua == "" {
			t.Error("User-Agent header should be set")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(registryDoc))
	}))
	defer server.Close()

	r := NewResolver(WithRegistryURL(server.URL))

	tests := []struct {
		name       string
		prerelease bool
		want       string
	}{
		{"dist-tag latest", false, "1.2.0"},
		{"prerelease opt-in scans versions", true, "1.3.0-beta"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.ResolveLatest(context.Background(), "my-app", "", tt.prerelease)
			if err != nil {
				t.Fatalf("ResolveLatest() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ResolveLatest() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveLatestNonStringDistTag(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"versions":{"1.0.0":{},"2.0.0":{}},"dist-tags":{"latest":"2.0.0","next":3}}`))
	}))
	defer server.Close()

	r := NewResolver(WithRegistryURL(server.URL))
	got, err := r.ResolveLatest(context.Background(), "my-app", "", false)
	if err != nil {
		t.Fatalf("ResolveLatest() error: %v", err)
	}
	if got != "2.0.0" {
		t.Errorf("ResolveLatest() = %q, want %q", got, "2.0.0")
	}
}

func TestResolveLatestScopedPackage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.EscapedPath() != "/@acme%2Fapp" {
			t.Errorf("unexpected path: %s", r.URL.EscapedPath())
		}
		_, _ = w.Write([]byte(`{"versions": {"2.0.0": {}}}`))
	}))
	defer server.Close()

	r := NewResolver(WithRegistryURL(server.URL + "/"))
	got, err := r.ResolveLatest(context.Background(), "@acme/app", "", false)
	if err != nil {
		t.Fatalf("ResolveLatest() error: %v", err)
	}
	if got != "2.0.0" {
		t.Errorf("ResolveLatest() = %q, want 2.0.0", got)
	}
}

func TestResolveLatestGitHubFallback(t *testing.T) {
	var primaryHits, fallbackHits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/acme/app/releases/download/jdeploy/package-info.json":
			atomic.AddInt32(&primaryHits, 1)
			http.NotFound(w, r)
		case "/acme/app/releases/download/jdeploy/package-info-2.json":
			atomic.AddInt32(&fallbackHits, 1)
			_, _ = w.Write([]byte(`{"dist-tags": {"latest": "3.1.0"}, "versions": {"3.1.0": {}}}`))
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	r := NewResolver(WithHTTPClient(&http.Client{
		Transport: &rewriteTransport{base: http.DefaultTransport, targetURL: server.URL},
	}))

	got, err := r.ResolveLatest(context.Background(), "app", "https://github.com/acme/app", false)
	if err != nil {
		t.Fatalf("ResolveLatest() error: %v", err)
	}
	if got != "3.1.0" {
		t.Errorf("ResolveLatest() = %q, want 3.1.0", got)
	}
	if primaryHits != 1 || fallbackHits != 1 {
		t.Errorf("hits primary=%d fallback=%d, want 1 and 1", primaryHits, fallbackHits)
	}
}

func TestResolveLatestGitHubBothFail(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	r := NewResolver(WithHTTPClient(&http.Client{
		Transport: &rewriteTransport{base: http.DefaultTransport, targetURL: server.URL},
	}))

	_, err := r.ResolveLatest(context.Background(), "app", "https://github.com/acme/app", false)
	if err == nil {
		t.Fatal("expected error when both assets fail")
	}
	if hits != 2 {
		t.Errorf("hits = %d, want exactly one retry", hits)
	}
	if !apperrors.IsCode(err, apperrors.CodeResolutionError) {
		t.Errorf("error code = %q, want resolution_error", apperrors.CodeOf(err))
	}
	if !errors.Is(err, ErrNetworkFailure) {
		t.Error("combined error should still match ErrNetworkFailure")
	}
	if !strings.Contains(err.Error(), "package-info-2.json") {
		t.Errorf("error should mention the fallback asset: %v", err)
	}
}

func TestResolveLatestErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"missing versions", http.StatusOK, `{"dist-tags": {"latest": "1.0.0"}}`, ErrInvalidDocument},
		{"malformed json", http.StatusOK, `{not json`, ErrInvalidDocument},
		{"server error", http.StatusInternalServerError, ``, ErrNetworkFailure},
		{"only branches", http.StatusOK, `{"versions": {"0.0.0-dev": {}}}`, ErrNoEligibleVersion},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			r := NewResolver(WithRegistryURL(server.URL))
			_, err := r.ResolveLatest(context.Background(), "pkg", "", false)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if !apperrors.IsCode(err, apperrors.CodeResolutionError) {
				t.Errorf("error code = %q, want resolution_error", apperrors.CodeOf(err))
			}
		})
	}
}

func TestSelectLatest(t *testing.T) {
	tests := []struct {
		name       string
		doc        *Document
		prerelease bool
		want       string
		wantErr    bool
	}{
		{
			name: "prerelease dist-tag ignored without opt-in",
			doc: &Document{
				DistTags: distTags(`{"latest": "2.0.0-rc1"}`),
				Versions: versions("1.9.0", "2.0.0-rc1"),
			},
			want: "1.9.0",
		},
		{
			name: "no dist-tags",
			doc:  &Document{Versions: versions("1.0.0", "1.10.0", "1.9.0")},
			want: "1.10.0",
		},
		{
			name:       "opt-in ignores dist-tag",
			doc:        &Document{DistTags: distTags(`{"latest": "1.0.0"}`), Versions: versions("1.0.0", "1.1.0-alpha")},
			prerelease: true,
			want:       "1.1.0-alpha",
		},
		{
			name: "branch dist-tag falls back to versions",
			doc: &Document{
				DistTags: distTags(`{"latest": "0.0.0-feat"}`),
				Versions: versions("1.0.0", "1.4.0", "0.0.0-feat"),
			},
			want: "1.4.0",
		},
		{
			name: "non-string dist-tag falls back to versions",
			doc: &Document{
				DistTags: distTags(`{"latest": 3}`),
				Versions: versions("1.0.0", "2.1.0"),
			},
			want: "2.1.0",
		},
		{
			name:    "empty versions",
			doc:     &Document{Versions: versions()},
			wantErr: true,
		},
		{
			name:    "nil document",
			doc:     nil,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SelectLatest(tt.doc, tt.prerelease)
			if (err != nil) != tt.wantErr {
				t.Fatalf("SelectLatest() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("SelectLatest() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveLatestContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(registryDoc))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewResolver(WithRegistryURL(server.URL))
	if _, err := r.ResolveLatest(ctx, "my-app", "", false); err == nil {
		t.Error("expected error for canceled context")
	}
}

func versions(vs ...string) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(vs))
	for _, v := range vs {
		out[v] = json.RawMessage(`{}`)
	}
	return out
}

func distTags(doc string) map[string]json.RawMessage {
	var out map[string]json.RawMessage
	if err := json.Unmarshal([]byte(doc), &out); err != nil {
		panic(err)
	}
	return out
}

// rewriteTransport rewrites request URLs for testing.
type rewriteTransport struct {
	base      http.RoundTripper
	targetURL string
}

func (t *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = "http"
	req.URL.Host = t.targetURL[7:] // strip "http://"
	return t.base.RoundTrip(req)
}
