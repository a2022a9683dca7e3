package index

import (
	"testing"

	"github.com/gemhutch/registry/internal/core/models"
)

func TestBuildNames(t *testing.T) {
	records := []models.Record{
		{Name: "zeta", Version: "1.0.0"},
		{Name: "alpha", Version: "1.0.0"},
		{Name: "alpha", Version: "2.0.0"},
		{Name: "mid", Version: "0.1.0"},
	}

	got := string(BuildNames(records))
	want := "alpha\nmid\nzeta\n"
	if got != want {
		t.Errorf("BuildNames = %q, want %q", got, want)
	}
}

func TestBuildNamesEmpty(t *testing.T) {
	if got := BuildNames(nil); len(got) != 0 {
		t.Errorf("BuildNames(nil) = %q, want empty", got)
	}
}

func TestBuildVersions(t *testing.T) {
	records := []models.Record{
		{Name: "rake", Version: "1.2.0"},
		{Name: "rake", Version: "1.10.0"},
		{Name: "rake", Version: "1.3.0"},
		{Name: "rack", Version: "3.0.0"},
	}

	got := string(BuildVersions(records))
	// Versions sort by numeric component compare, not string compare.
	want := "rack 3.0.0\nrake 1.2.0,1.3.0,1.10.0\n"
	if got != want {
		t.Errorf("BuildVersions = %q, want %q", got, want)
	}
}

func TestBuildVersionsMultiPlatform(t *testing.T) {
	records := []models.Record{
		{Name: "foo", Version: "1.0.0", Platform: "ruby"},
		{Name: "foo", Version: "1.0.0", Platform: "java"},
		{Name: "foo", Version: "2.0.0", Platform: "ruby"},
	}

	// A version released on several platforms is still one version.
	got := string(BuildVersions(records))
	want := "foo 1.0.0,2.0.0\n"
	if got != want {
		t.Errorf("BuildVersions = %q, want %q", got, want)
	}
}

func TestBuildInfo(t *testing.T) {
	records := []models.Record{
		{
			Name: "foo", Version: "1.0.0", Platform: "ruby", ContentHash: "deadbeef",
			Dependencies: []models.Dependency{{Name: "bar", Requirement: ">= 0"}},
		},
		{
			Name: "foo", Version: "0.9.0", Platform: "ruby", ContentHash: "cafef00d",
		},
		{Name: "other", Version: "5.0.0", Platform: "ruby", ContentHash: "ffff"},
	}

	got := string(BuildInfo(records, "foo"))
	want := "0.9.0,cafef00d,ruby\n1.0.0,deadbeef,ruby,bar:>= 0\n"
	if got != want {
		t.Errorf("BuildInfo = %q, want %q", got, want)
	}
}

func TestBuildInfoMultipleDependencies(t *testing.T) {
	records := []models.Record{
		{
			Name: "app", Version: "2.0.0", Platform: "ruby", ContentHash: "aa",
			Dependencies: []models.Dependency{
				{Name: "rack", Requirement: "~> 3.0"},
				{Name: "rake", Requirement: ">= 12.0, < 14"},
			},
		},
	}

	got := string(BuildInfo(records, "app"))
	want := "2.0.0,aa,ruby,rack:~> 3.0,rake:>= 12.0, < 14\n"
	if got != want {
		t.Errorf("BuildInfo = %q, want %q", got, want)
	}
}

func TestBuildInfoUnknownName(t *testing.T) {
	records := []models.Record{{Name: "foo", Version: "1.0.0", Platform: "ruby"}}
	if got := BuildInfo(records, "missing"); len(got) != 0 {
		t.Errorf("BuildInfo unknown = %q, want empty body", got)
	}
}

func TestInfoKey(t *testing.T) {
	if got := InfoKey("rails"); got != "info/rails" {
		t.Errorf("InfoKey = %q", got)
	}
}
