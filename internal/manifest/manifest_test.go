package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	apperrors "updateclient/internal/errors"
)

const fullPackage = `{
	"name": "rates",
	"version": "1.4.0",
	"source": "https://github.com/acme/rates",
	"jdeploy": {
		"title": "Rates Calculator",
		"minLauncherInitialAppVersion": "1.2.0"
	}
}`

func writePackage(t *testing.T, dir, content string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFindPackageJSONWalksUp(t *testing.T) {
	root := t.TempDir()
	want := writePackage(t, root, fullPackage)
	nested := filepath.Join(root, "lib", "deep")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	got, err := FindPackageJSON(nested)
	if err != nil {
		t.Fatalf("FindPackageJSON() error: %v", err)
	}
	if got != want {
		t.Errorf("FindPackageJSON() = %q, want %q", got, want)
	}
}

func TestFindPackageJSONFromBundle(t *testing.T) {
	root := t.TempDir()
	app := filepath.Join(root, "app")
	want := writePackage(t, app, fullPackage)
	bundle := filepath.Join(app, BundleDirName)
	if err := os.MkdirAll(bundle, 0755); err != nil {
		t.Fatal(err)
	}

	got, err := FindPackageJSON(bundle)
	if err != nil {
		t.Fatalf("FindPackageJSON() error: %v", err)
	}
	if got != want {
		t.Errorf("FindPackageJSON() = %q, want %q", got, want)
	}
}

func TestFindPackageJSONPrefersNearest(t *testing.T) {
	root := t.TempDir()
	writePackage(t, root, fullPackage)
	inner := writePackage(t, filepath.Join(root, "inner"), fullPackage)

	got, err := FindPackageJSON(filepath.Join(root, "inner"))
	if err != nil || got != inner {
		t.Errorf("FindPackageJSON() = %q, %v; want %q", got, err, inner)
	}
}

func TestParse(t *testing.T) {
	path := writePackage(t, t.TempDir(), fullPackage)
	pkg, err := Parse(path)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if pkg.Name != "rates" || pkg.Version != "1.4.0" || pkg.Source != "https://github.com/acme/rates" {
		t.Errorf("Parse() = %+v", pkg)
	}
	if pkg.Title != "Rates Calculator" || pkg.MinLauncherVersion != "1.2.0" {
		t.Errorf("jdeploy fields = %q, %q", pkg.Title, pkg.MinLauncherVersion)
	}

	params, err := pkg.Params()
	if err != nil {
		t.Fatalf("Params() error: %v", err)
	}
	if params.PackageName != "rates" || params.AppTitle != "Rates Calculator" || params.CurrentVersion != "1.4.0" {
		t.Errorf("Params() = %+v", params)
	}
}

func TestParseDefaults(t *testing.T) {
	path := writePackage(t, t.TempDir(), `{"name": "rates", "version": "1.0.0", "source": 7, "jdeploy": "x"}`)
	pkg, err := Parse(path)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if pkg.Title != "rates" {
		t.Errorf("Title = %q, want name fallback", pkg.Title)
	}
	if pkg.Source != "" || pkg.MinLauncherVersion != "" {
		t.Errorf("non-string fields should be empty: %+v", pkg)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		target  error
	}{
		{"missing name", `{"version": "1.0.0"}`, ErrMissingName},
		{"missing version", `{"name": "rates"}`, ErrMissingVersion},
		{"non-string name", `{"name": 1, "version": "1.0.0"}`, ErrMissingName},
		{"invalid json", `{`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(writePackage(t, t.TempDir(), tt.content))
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.target != nil && !errors.Is(err, tt.target) {
				t.Errorf("error = %v, want %v", err, tt.target)
			}
			if !apperrors.IsCode(err, apperrors.CodeResolutionError) {
				t.Errorf("error code = %q, want resolution_error", apperrors.CodeOf(err))
			}
		})
	}
}

func TestRequiresLauncherUpdate(t *testing.T) {
	root := t.TempDir()
	app := filepath.Join(root, "app")
	writePackage(t, app, fullPackage)

	tests := []struct {
		version string
		want    bool
	}{
		{"1.0.0", true},
		{"1.1.9", true},
		{"1.2.0", false},
		{"2.0.0", false},
		{"0.0.0-main", false},
	}
	for _, tt := range tests {
		got, err := RequiresLauncherUpdate(app, tt.version)
		if err != nil {
			t.Fatalf("RequiresLauncherUpdate(%s) error: %v", tt.version, err)
		}
		if got != tt.want {
			t.Errorf("RequiresLauncherUpdate(%s) = %v, want %v", tt.version, got, tt.want)
		}
	}
}

func TestRequiresLauncherUpdateWithUpdateManifest(t *testing.T) {
	root := t.TempDir()
	app := filepath.Join(root, "app")
	writePackage(t, app, fullPackage)
	if err := os.WriteFile(filepath.Join(root, UpdateManifestName), []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := RequiresLauncherUpdate(app, "1.0.0")
	if err != nil {
		t.Fatalf("RequiresLauncherUpdate() error: %v", err)
	}
	if got {
		t.Error("a self-updating launcher never requires a bridge update")
	}
}

func TestRequiresLauncherUpdateWithoutMinimum(t *testing.T) {
	app := t.TempDir()
	writePackage(t, app, `{"name": "rates", "version": "1.0.0"}`)
	got, err := RequiresLauncherUpdate(app, "0.1.0")
	if err != nil || got {
		t.Errorf("RequiresLauncherUpdate() = %v, %v; want false", got, err)
	}
}
