// Package cmdutil provides shared utilities for regsweep commands.
package cmdutil

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/marmos91/regsweep/internal/cli/output"
	"github.com/marmos91/regsweep/internal/cli/prompt"
	"github.com/marmos91/regsweep/internal/logger"
	"github.com/marmos91/regsweep/pkg/config"
)

// Flags stores global flag values accessible by subcommands.
var Flags = &GlobalFlags{}

// GlobalFlags holds the global flag values.
type GlobalFlags struct {
	ConfigFile  string
	APIURL      string
	RegistryURL string
	Token       string
	Output      string
	NoColor     bool
	Verbose     bool
	Quiet       bool
}

// Repository is a parsed OWNER/PACKAGE argument.
type Repository struct {
	Owner   string
	Package string
}

// String returns the owner/package form, which is also the ghcr repository
// path of the package.
func (r Repository) String() string {
	return r.Owner + "/" + r.Package
}

// ParseRepository validates an OWNER/PACKAGE argument before any network
// traffic. The owner must be a single path segment; the package name may
// contain further slashes.
func ParseRepository(arg string) (Repository, error) {
	owner, pkg, ok := strings.Cut(strings.TrimSpace(arg), "/")
	if !ok || owner == "" || pkg == "" {
		return Repository{}, fmt.Errorf("invalid repository %q: expected OWNER/PACKAGE", arg)
	}
	if strings.ContainsAny(owner, " \t") || strings.ContainsAny(pkg, " \t") {
		return Repository{}, fmt.Errorf("invalid repository %q: whitespace not allowed", arg)
	}
	return Repository{Owner: owner, Package: pkg}, nil
}

// CleanTags validates tag arguments. Empty tags are usage errors, duplicates
// are collapsed, order is preserved.
func CleanTags(args []string) ([]string, error) {
	seen := make(map[string]struct{}, len(args))
	var tags []string
	for _, arg := range args {
		tag := strings.TrimSpace(arg)
		if tag == "" {
			return nil, fmt.Errorf("empty tag argument")
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	return tags, nil
}

// LoadConfig loads the configuration and folds the global flags on top,
// so flag values win over environment and file.
func LoadConfig() (*config.Config, error) {
	cfg, err := config.Load(Flags.ConfigFile)
	if err != nil {
		return nil, err
	}
	if Flags.APIURL != "" {
		cfg.API.URL = Flags.APIURL
	}
	if Flags.RegistryURL != "" {
		cfg.Registry.URL = Flags.RegistryURL
	}
	if Flags.Token != "" {
		cfg.API.Token = Flags.Token
	}
	if Flags.Verbose {
		cfg.Logging.Level = "DEBUG"
	}
	if Flags.Quiet {
		cfg.Logging.Level = "ERROR"
	}
	return cfg, nil
}

// InitLogger initializes the structured logger from configuration.
func InitLogger(cfg *config.Config) error {
	loggerCfg := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}
	if err := logger.Init(loggerCfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if Flags.NoColor {
		logger.DisableColor()
	}
	return nil
}

// GetOutputFormatParsed returns the parsed output format.
func GetOutputFormatParsed() (output.Format, error) {
	return output.ParseFormat(Flags.Output)
}

// IsColorDisabled returns whether color output is disabled.
func IsColorDisabled() bool {
	return Flags.NoColor
}

// Printer returns a stdout printer honoring the output and color flags.
func Printer() (*output.Printer, error) {
	format, err := GetOutputFormatParsed()
	if err != nil {
		return nil, err
	}
	return output.NewPrinter(os.Stdout, format, !IsColorDisabled()), nil
}

// PrintOutput prints data in the specified format (JSON, YAML, or table).
// For table format, it displays emptyMsg if data is empty, otherwise uses the tableRenderer.
func PrintOutput(w io.Writer, data any, isEmpty bool, emptyMsg string, tableRenderer output.TableRenderer) error {
	format, err := GetOutputFormatParsed()
	if err != nil {
		return err
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(w, data)
	case output.FormatYAML:
		return output.PrintYAML(w, data)
	default:
		if isEmpty {
			_, _ = fmt.Fprintln(w, emptyMsg)
			return nil
		}
		return output.PrintTable(w, tableRenderer)
	}
}

// PrintSuccess prints a success message if the output format is table.
func PrintSuccess(msg string) {
	format, err := GetOutputFormatParsed()
	if err != nil || format != output.FormatTable {
		return
	}
	printer := output.NewPrinter(os.Stdout, format, !IsColorDisabled())
	printer.Success(msg)
}

// HandleAbort checks if error is an abort (Ctrl+C) and prints a message.
// Returns nil for abort (user cancelled), otherwise returns the original error.
func HandleAbort(err error) error {
	if prompt.IsAborted(err) {
		fmt.Println("\nAborted.")
		return nil
	}
	return err
}

// BoolToYesNo converts a boolean to "yes" or "no" string.
func BoolToYesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// EmptyOr returns the value if not empty, otherwise returns the fallback.
// Useful for table display where empty fields should show "-".
func EmptyOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// ShortDigest abbreviates a digest for table display: algorithm plus the
// first 12 hex characters, the way docker prints image ids.
func ShortDigest(d string) string {
	algo, hex, ok := strings.Cut(d, ":")
	if !ok || len(hex) <= 12 {
		return d
	}
	return algo + ":" + hex[:12]
}
