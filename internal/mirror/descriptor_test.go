package mirror

import (
	"errors"
	"testing"

	"github.com/CosmoTheDev/forgemirror/internal/forge"
)

func TestBuildDescriptor(t *testing.T) {
	target := Target{Org: "Acme", SSHPrefix: "git@github.com"}
	tests := []struct {
		name    string
		repo    forge.Repository
		base    string
		want    Descriptor
		wantErr bool
	}{
		{
			name: "short name",
			repo: forge.Repository{ID: 42, PHID: "PHID-REPO-a", Name: "Acme tools", ShortName: "acme", Callsign: "AC"},
			base: "https://forge.example/",
			want: Descriptor{
				PHID:        "PHID-REPO-a",
				Description: "Acme tools",
				URL:         "https://forge.example/source/acme/",
				Name:        "acme",
				MirrorURL:   "git@github.com:Acme/acme.git",
			},
		},
		{
			name: "callsign without trailing slash",
			repo: forge.Repository{ID: 3, PHID: "PHID-REPO-b", Name: "Billing", Callsign: "BILL"},
			base: "https://forge.example",
			want: Descriptor{
				PHID:        "PHID-REPO-b",
				Description: "Billing",
				URL:         "https://forge.example/diffusion/BILL/",
				Name:        "BILL",
				MirrorURL:   "git@github.com:Acme/BILL.git",
			},
		},
		{
			name: "numeric id",
			repo: forge.Repository{ID: 17, PHID: "PHID-REPO-c"},
			base: "https://forge.example//",
			want: Descriptor{
				PHID:        "PHID-REPO-c",
				Description: "R17",
				URL:         "https://forge.example/diffusion/17/",
				Name:        "R17",
				MirrorURL:   "git@github.com:Acme/R17.git",
			},
		},
		{
			name:    "nothing to name",
			repo:    forge.Repository{PHID: "PHID-REPO-d", Name: "Anonymous"},
			base:    "https://forge.example/",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		got, err := BuildDescriptor(tt.repo, tt.base, target, Overrides{})
		if tt.wantErr {
			if !errors.Is(err, ErrDescriptor) {
				t.Errorf("%s: err = %v, want descriptor error", tt.name, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: %v", tt.name, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%s:\n got %+v\nwant %+v", tt.name, got, tt.want)
		}
	}
}

func TestBuildDescriptorOverrides(t *testing.T) {
	repo := forge.Repository{PHID: "PHID-REPO-d", Name: "Anonymous"}
	target := Target{Org: "Acme", SSHPrefix: "git@github.com"}

	d, err := BuildDescriptor(repo, "https://forge.example/", target, Overrides{Name: "anon", URL: "https://example.org/anon"})
	if err != nil {
		t.Fatal(err)
	}
	if d.Name != "anon" || d.URL != "https://example.org/anon" || d.Description != "Anonymous" {
		t.Errorf("descriptor = %+v", d)
	}

	if _, err := BuildDescriptor(repo, "https://forge.example/", target, Overrides{Name: "anon"}); !errors.Is(err, ErrDescriptor) {
		t.Errorf("name override without url: err = %v", err)
	}
}

func TestBuildDescriptorDeterministic(t *testing.T) {
	repo := forge.Repository{ID: 42, PHID: "PHID-REPO-a", Name: "Acme tools", ShortName: "acme"}
	target := Target{Org: "Acme", SSHPrefix: "git@github.com"}
	first, err := BuildDescriptor(repo, "https://forge.example/", target, Overrides{})
	if err != nil {
		t.Fatal(err)
	}
	for range 5 {
		again, err := BuildDescriptor(repo, "https://forge.example/", target, Overrides{})
		if err != nil || again != first {
			t.Fatalf("descriptor changed: %+v vs %+v (%v)", again, first, err)
		}
	}
}
