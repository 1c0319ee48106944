package installer

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"updateclient/internal/debug"
	apperrors "updateclient/internal/errors"
	"updateclient/internal/packageinfo"
	"updateclient/internal/platform"
)

// Default configuration values.
const (
	DefaultBaseURL         = "https://www.jdeploy.com/"
	DefaultConnectTimeout  = 2 * time.Second
	DefaultReadTimeout     = 10 * time.Second
	DefaultInstallerName   = "installer"
	downloadUserAgent      = "updateclient-installer"
	downloadFileMode       = 0o644
	contentDispositionName = "Content-Disposition"
)

// Error variables for acquisition errors.
var (
	ErrDownloadFailed = fmt.Errorf("download failed")
)

var (
	filenamePattern         = regexp.MustCompile(`(?i)filename\s*=\s*"?([^";]+)"?`)
	extendedFilenamePattern = regexp.MustCompile(`(?i)filename\*\s*=\s*[^']*'[^']*'([^";]+)`)
)

// ProgressFunc is called during download with bytes downloaded and total size.
// total is -1 when the server does not send a length.
type ProgressFunc func(downloaded, total int64)

// Acquirer downloads installer artifacts from the download service.
type Acquirer struct {
	baseURL    string
	httpClient *http.Client
	detect     func(ctx context.Context) (platform.Profile, error)
	progress   ProgressFunc
}

// AcquirerOption configures an Acquirer.
type AcquirerOption func(*Acquirer)

// WithAcquirerHTTPClient sets a custom HTTP client for downloads.
func WithAcquirerHTTPClient(client *http.Client) AcquirerOption {
	return func(a *Acquirer) {
		a.httpClient = client
	}
}

// WithBaseURL overrides the download service root. Empty keeps the default.
func WithBaseURL(base string) AcquirerOption {
	return func(a *Acquirer) {
		if strings.TrimSpace(base) != "" {
			a.baseURL = ensureTrailingSlash(strings.TrimSpace(base))
		}
	}
}

// WithProfile pins the platform profile instead of detecting the host.
func WithProfile(p platform.Profile) AcquirerOption {
	return func(a *Acquirer) {
		a.detect = func(context.Context) (platform.Profile, error) { return p, nil }
	}
}

// WithProgress registers a download progress callback.
func WithProgress(fn ProgressFunc) AcquirerOption {
	return func(a *Acquirer) {
		a.progress = fn
	}
}

// NewAcquirer creates an acquirer for the host platform.
func NewAcquirer(opts ...AcquirerOption) *Acquirer {
	a := &Acquirer{
		baseURL:    DefaultBaseURL,
		httpClient: packageinfo.NewTimeoutClient(DefaultConnectTimeout, DefaultReadTimeout),
		detect: func(ctx context.Context) (platform.Profile, error) {
			p, _, err := platform.DetectHost(ctx)
			return p, err
		},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// DownloadURL builds the download service query for one artifact.
func (a *Acquirer) DownloadURL(pkg, version, source string, p platform.Profile) string {
	var b strings.Builder
	b.WriteString(a.baseURL)
	b.WriteString("download.php?platform=")
	b.WriteString(url.QueryEscape(p.ID))
	b.WriteString("&package=")
	b.WriteString(url.QueryEscape(pkg))
	b.WriteString("&version=")
	b.WriteString(url.QueryEscape(version))
	b.WriteString("&prerelease=false&updates=latest&source=")
	b.WriteString(url.QueryEscape(source))
	if p.Format != "" {
		b.WriteString("&format=")
		b.WriteString(url.QueryEscape(p.Format))
	}
	return b.String()
}

// Download fetches the installer for version into destDir and returns the
// written path. The filename is the one assigned by the server.
func (a *Acquirer) Download(ctx context.Context, pkg, version, source, destDir string) (string, error) {
	profile, err := a.detect(ctx)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(destDir) == "" {
		destDir = os.TempDir()
	}

	downloadURL := a.DownloadURL(pkg, version, source, profile)
	debug.Logf("installer: downloading %s", downloadURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/octet-stream")
	req.Header.Set("User-Agent", downloadUserAgent)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", downloadErr(fmt.Errorf("%w: %v", ErrDownloadFailed, err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", downloadErr(fmt.Errorf("%w: status %d", ErrDownloadFailed, resp.StatusCode))
	}

	name := safeFilename(FilenameFromDisposition(resp.Header.Get(contentDispositionName)))
	//nolint:gosec // G301: destination is a caller-chosen download directory
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", fmt.Errorf("create download directory: %w", err)
	}
	dest := filepath.Join(destDir, name)

	//nolint:gosec // G304: filename is reduced to a single path element
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, downloadFileMode)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", dest, err)
	}

	var body io.Reader = resp.Body
	if a.progress != nil {
		body = &progressReader{reader: resp.Body, total: resp.ContentLength, progress: a.progress}
	}
	if _, err := io.Copy(out, body); err != nil {
		_ = out.Close()
		_ = os.Remove(dest)
		return "", downloadErr(fmt.Errorf("%w: %v", ErrDownloadFailed, err))
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", dest, err)
	}

	debug.Logf("installer: saved %s", dest)
	return dest, nil
}

// FilenameFromDisposition extracts the filename from a Content-Disposition
// header. Both filename= and filename*=charset'lang'value forms are
// accepted. Returns "" when no filename can be found.
func FilenameFromDisposition(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}

	if _, params, err := mime.ParseMediaType(header); err == nil {
		if name := strings.TrimSpace(params["filename"]); name != "" {
			return name
		}
	}

	// Lenient fallbacks for headers the MIME parser rejects.
	if m := filenamePattern.FindStringSubmatch(header); m != nil {
		if name := strings.TrimSpace(m[1]); name != "" {
			return name
		}
	}
	if m := extendedFilenamePattern.FindStringSubmatch(header); m != nil {
		value := strings.TrimSpace(m[1])
		if decoded, err := url.PathUnescape(value); err == nil {
			return decoded
		}
		return value
	}
	return ""
}

// safeFilename reduces a server-supplied name to a single path element.
func safeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(filepath.FromSlash(name))
	switch name {
	case "", ".", "..", string(filepath.Separator):
		return DefaultInstallerName
	}
	return name
}

func downloadErr(err error) error {
	return apperrors.New(apperrors.CodeDownloadFailed, "download installer", err)
}

func ensureTrailingSlash(s string) string {
	if strings.HasSuffix(s, "/") {
		return s
	}
	return s + "/"
}

// progressReader wraps a reader to report progress.
type progressReader struct {
	reader     io.Reader
	total      int64
	downloaded int64
	progress   ProgressFunc
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	pr.downloaded += int64(n)
	if pr.progress != nil {
		pr.progress(pr.downloaded, pr.total)
	}
	return n, err
}
