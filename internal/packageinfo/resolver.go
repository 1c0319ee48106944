// Package packageinfo resolves the latest published version of a package
// from either a GitHub release asset or an npm-compatible registry.
package packageinfo

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"updateclient/internal/debug"
	apperrors "updateclient/internal/errors"
	"updateclient/internal/version"
)

// Default configuration values.
const (
	DefaultRegistryURL    = "https://registry.npmjs.org/"
	DefaultConnectTimeout = 5 * time.Second
	DefaultReadTimeout    = 10 * time.Second

	githubPrefix  = "https://github.com/"
	releaseTag    = "jdeploy"
	primaryAsset  = "package-info.json"
	fallbackAsset = "package-info-2.json"
	userAgent     = "updateclient-package-info"
)

// Error variables for specific error conditions.
var (
	ErrNetworkFailure    = fmt.Errorf("network request failed")
	ErrInvalidDocument   = fmt.Errorf("invalid package info document")
	ErrNoEligibleVersion = fmt.Errorf("no eligible version found")
)

// Document is the package metadata document shared by both hosts.
type Document struct {
	Name     string                     `json:"name"`
	DistTags map[string]json.RawMessage `json:"dist-tags"`
	Versions map[string]json.RawMessage `json:"versions"`
}

// DistTag returns the named dist-tag when it holds a string. Tags with
// any other JSON type are treated as absent.
func (d *Document) DistTag(name string) string {
	raw, ok := d.DistTags[name]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

// VersionList returns the keys of the versions object.
func (d *Document) VersionList() []string {
	out := make([]string, 0, len(d.Versions))
	for v := range d.Versions {
		out = append(out, v)
	}
	return out
}

// Resolver fetches package info documents.
type Resolver struct {
	registryURL string
	httpClient  *http.Client
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithHTTPClient sets a custom HTTP client for the resolver.
func WithHTTPClient(client *http.Client) ResolverOption {
	return func(r *Resolver) {
		r.httpClient = client
	}
}

// WithRegistryURL overrides the npm registry root. Empty keeps the default.
func WithRegistryURL(base string) ResolverOption {
	return func(r *Resolver) {
		if strings.TrimSpace(base) != "" {
			r.registryURL = ensureTrailingSlash(strings.TrimSpace(base))
		}
	}
}

// NewResolver creates a resolver with bounded connect and read timeouts.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{
		registryURL: DefaultRegistryURL,
		httpClient:  NewTimeoutClient(DefaultConnectTimeout, DefaultReadTimeout),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewTimeoutClient returns a client whose dial is bounded by connect and
// whose wait for response headers and body is bounded by read.
func NewTimeoutClient(connect, read time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: connect}).DialContext
	transport.TLSHandshakeTimeout = connect
	transport.ResponseHeaderTimeout = read
	return &http.Client{
		Transport: transport,
		Timeout:   connect + read,
	}
}

// RegistryURL returns the registry root in use.
func (r *Resolver) RegistryURL() string {
	return r.registryURL
}

// IsReleaseHosted reports whether source points at a GitHub repository.
func IsReleaseHosted(source string) bool {
	return strings.HasPrefix(source, githubPrefix)
}

// ResolveLatest returns the newest eligible version of pkg.
func (r *Resolver) ResolveLatest(ctx context.Context, pkg, source string, includePrerelease bool) (string, error) {
	doc, err := r.Fetch(ctx, pkg, source)
	if err != nil {
		return "", err
	}
	latest, err := SelectLatest(doc, includePrerelease)
	if err != nil {
		return "", apperrors.New(apperrors.CodeResolutionError, fmt.Sprintf("select latest version of %s", pkg), err)
	}
	debug.Logf("packageinfo: latest %s for %s (prerelease=%v)", latest, pkg, includePrerelease)
	return latest, nil
}

// Fetch downloads and validates the package info document.
func (r *Resolver) Fetch(ctx context.Context, pkg, source string) (*Document, error) {
	var (
		doc *Document
		err error
	)
	if IsReleaseHosted(source) {
		doc, err = r.fetchRelease(ctx, source)
	} else {
		doc, err = r.fetchDocument(ctx, r.registryURL+registryPath(pkg))
	}
	if err != nil {
		return nil, apperrors.New(apperrors.CodeResolutionError, fmt.Sprintf("fetch package info for %s", pkg), err)
	}
	return doc, nil
}

// fetchRelease tries the primary release asset and falls back once.
func (r *Resolver) fetchRelease(ctx context.Context, source string) (*Document, error) {
	base := strings.TrimSuffix(source, "/") + "/releases/download/" + releaseTag + "/"

	doc, primaryErr := r.fetchDocument(ctx, base+primaryAsset)
	if primaryErr == nil {
		return doc, nil
	}
	debug.Logf("packageinfo: %s failed (%v), trying %s", primaryAsset, primaryErr, fallbackAsset)

	doc, fallbackErr := r.fetchDocument(ctx, base+fallbackAsset)
	if fallbackErr == nil {
		return doc, nil
	}

	var merr *multierror.Error
	merr = multierror.Append(merr,
		fmt.Errorf("%s: %w", primaryAsset, primaryErr),
		fmt.Errorf("%s: %w", fallbackAsset, fallbackErr),
	)
	return nil, merr.ErrorOrNil()
}

func (r *Resolver) fetchDocument(ctx context.Context, rawURL string) (*Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkFailure, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrNetworkFailure, resp.StatusCode)
	}

	var doc Document
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrInvalidDocument, err)
	}
	if doc.Versions == nil {
		return nil, fmt.Errorf("%w: missing versions object", ErrInvalidDocument)
	}
	return &doc, nil
}

// SelectLatest picks the version to offer from doc. Without pre-release
// opt-in, a release dist-tags.latest wins unless it names a branch build;
// otherwise the maximum eligible entry of versions is used.
func SelectLatest(doc *Document, includePrerelease bool) (string, error) {
	if doc == nil || doc.Versions == nil {
		return "", fmt.Errorf("%w: missing versions object", ErrInvalidDocument)
	}
	if !includePrerelease {
		if latest := doc.DistTag("latest"); latest != "" && !version.IsPrerelease(latest) && !version.IsBranch(latest) {
			return latest, nil
		}
	}
	best, ok := version.Max(doc.VersionList(), includePrerelease)
	if !ok {
		return "", ErrNoEligibleVersion
	}
	return best, nil
}

// registryPath escapes pkg for the registry. Scoped names keep their
// leading "@" and encode the slash, as npm clients do.
func registryPath(pkg string) string {
	if strings.HasPrefix(pkg, "@") {
		return "@" + url.PathEscape(strings.TrimPrefix(pkg, "@"))
	}
	return url.PathEscape(pkg)
}

func ensureTrailingSlash(s string) string {
	if strings.HasSuffix(s, "/") {
		return s
	}
	return s + "/"
}
