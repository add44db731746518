package cmdutil

import (
	"bytes"
	"testing"

	"github.com/marmos91/regsweep/internal/cli/credentials"
	"github.com/marmos91/regsweep/pkg/config"
)

func TestParseRepository(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		owner   string
		pkg     string
		wantErr bool
	}{
		{
			name:  "simple",
			input: "pdcastro/oh_so_smart",
			owner: "pdcastro",
			pkg:   "oh_so_smart",
		},
		{
			name:  "nested package name",
			input: "acme/tools/builder",
			owner: "acme",
			pkg:   "tools/builder",
		},
		{
			name:  "surrounding whitespace trimmed",
			input: "  acme/widget  ",
			owner: "acme",
			pkg:   "widget",
		},
		{
			name:    "missing slash",
			input:   "justowner",
			wantErr: true,
		},
		{
			name:    "empty owner",
			input:   "/pkg",
			wantErr: true,
		},
		{
			name:    "empty package",
			input:   "owner/",
			wantErr: true,
		},
		{
			name:    "empty string",
			input:   "",
			wantErr: true,
		},
		{
			name:    "inner whitespace",
			input:   "acme/my pkg",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, err := ParseRepository(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseRepository(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if repo.Owner != tt.owner || repo.Package != tt.pkg {
				t.Errorf("ParseRepository(%q) = %q/%q, want %q/%q", tt.input, repo.Owner, repo.Package, tt.owner, tt.pkg)
			}
		})
	}
}

func TestRepositoryPath(t *testing.T) {
	repo := Repository{Owner: "PdCastro", Package: "Oh_So_Smart"}
	if got := RepositoryPath(repo); got != "pdcastro/oh_so_smart" {
		t.Errorf("RepositoryPath() = %q, want %q", got, "pdcastro/oh_so_smart")
	}
}

func TestCleanTags(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
		wantErr  bool
	}{
		{
			name:     "nil input",
			input:    nil,
			expected: nil,
		},
		{
			name:     "single tag",
			input:    []string{"v1"},
			expected: []string{"v1"},
		},
		{
			name:     "duplicates collapsed order kept",
			input:    []string{"v1", "latest", "v1"},
			expected: []string{"v1", "latest"},
		},
		{
			name:     "whitespace trimmed",
			input:    []string{" v1 "},
			expected: []string{"v1"},
		},
		{
			name:    "empty tag rejected",
			input:   []string{"v1", ""},
			wantErr: true,
		},
		{
			name:    "whitespace-only tag rejected",
			input:   []string{"  "},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tags, err := CleanTags(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CleanTags(%v) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(tags) != len(tt.expected) {
				t.Fatalf("CleanTags(%v) = %v, want %v", tt.input, tags, tt.expected)
			}
			for i, tag := range tags {
				if tag != tt.expected[i] {
					t.Errorf("CleanTags(%v)[%d] = %q, want %q", tt.input, i, tag, tt.expected[i])
				}
			}
		})
	}
}

func TestBoolToYesNo(t *testing.T) {
	tests := []struct {
		input    bool
		expected string
	}{
		{true, "yes"},
		{false, "no"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := BoolToYesNo(tt.input); got != tt.expected {
				t.Errorf("BoolToYesNo(%v) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestEmptyOr(t *testing.T) {
	if got := EmptyOr("", "-"); got != "-" {
		t.Errorf("EmptyOr(\"\", \"-\") = %q, want %q", got, "-")
	}
	if got := EmptyOr("value", "-"); got != "value" {
		t.Errorf("EmptyOr(\"value\", \"-\") = %q, want %q", got, "value")
	}
}

func TestShortDigest(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"sha256:0123456789abcdef0123456789abcdef", "sha256:0123456789ab"},
		{"sha256:0123", "sha256:0123"},
		{"notadigest", "notadigest"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ShortDigest(tt.input); got != tt.expected {
				t.Errorf("ShortDigest(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

// testTableRenderer implements output.TableRenderer for testing
type testTableRenderer struct {
	headers []string
	rows    [][]string
}

func (t testTableRenderer) Headers() []string {
	return t.headers
}

func (t testTableRenderer) Rows() [][]string {
	return t.rows
}

func TestPrintOutput_JSON(t *testing.T) {
	Flags.Output = "json"
	defer func() { Flags.Output = "table" }()

	var buf bytes.Buffer
	data := []string{"v1", "latest"}
	renderer := testTableRenderer{
		headers: []string{"TAG"},
		rows:    [][]string{{"v1"}, {"latest"}},
	}

	if err := PrintOutput(&buf, data, false, "No tag groups", renderer); err != nil {
		t.Fatalf("PrintOutput() error = %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte("v1")) || !bytes.Contains(buf.Bytes(), []byte("latest")) {
		t.Errorf("PrintOutput() = %q, missing expected data", buf.String())
	}
}

func TestPrintOutput_YAML(t *testing.T) {
	Flags.Output = "yaml"
	defer func() { Flags.Output = "table" }()

	var buf bytes.Buffer
	data := []string{"v1", "latest"}
	renderer := testTableRenderer{
		headers: []string{"TAG"},
		rows:    [][]string{{"v1"}, {"latest"}},
	}

	if err := PrintOutput(&buf, data, false, "No tag groups", renderer); err != nil {
		t.Fatalf("PrintOutput() error = %v", err)
	}
	expected := "- v1\n- latest\n"
	if buf.String() != expected {
		t.Errorf("PrintOutput() = %q, want %q", buf.String(), expected)
	}
}

func TestPrintOutput_Table_Empty(t *testing.T) {
	Flags.Output = "table"

	var buf bytes.Buffer
	renderer := testTableRenderer{headers: []string{"TAG"}}

	if err := PrintOutput(&buf, nil, true, "No tag groups found.", renderer); err != nil {
		t.Fatalf("PrintOutput() error = %v", err)
	}
	if buf.String() != "No tag groups found.\n" {
		t.Errorf("PrintOutput() = %q, want empty message", buf.String())
	}
}

func TestResolveToken_Precedence(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("GITHUB_TOKEN", "")

	cfg := config.GetDefaultConfig()
	cfg.API.Token = "from-config"

	tok, err := ResolveToken(cfg)
	if err != nil {
		t.Fatalf("ResolveToken() error = %v", err)
	}
	if tok != "from-config" {
		t.Errorf("ResolveToken() = %q, want %q", tok, "from-config")
	}
}

func TestResolveToken_CredentialStore(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("GITHUB_TOKEN", "")

	store, err := credentials.NewStore()
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	err = store.Set(credentials.ContextName("https://api.github.com"), &credentials.Context{
		APIURL: "https://api.github.com",
		Token:  "ghp_stored",
	})
	if err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	cfg := config.GetDefaultConfig()
	tok, err := ResolveToken(cfg)
	if err != nil {
		t.Fatalf("ResolveToken() error = %v", err)
	}
	if tok != "ghp_stored" {
		t.Errorf("ResolveToken() = %q, want stored token", tok)
	}
}

func TestResolveToken_GithubTokenFallback(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("GITHUB_TOKEN", "ghp_env")

	cfg := config.GetDefaultConfig()
	tok, err := ResolveToken(cfg)
	if err != nil {
		t.Fatalf("ResolveToken() error = %v", err)
	}
	if tok != "ghp_env" {
		t.Errorf("ResolveToken() = %q, want GITHUB_TOKEN value", tok)
	}
}

func TestResolveToken_NothingConfigured(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("GITHUB_TOKEN", "")

	cfg := config.GetDefaultConfig()
	if _, err := ResolveToken(cfg); err == nil {
		t.Fatal("ResolveToken() expected error with nothing configured")
	}
}
