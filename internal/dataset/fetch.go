// Package dataset downloads an annotated dataset from Roboflow into a local
// directory, with a manual export-and-unzip fallback for the case where the
// primary download completes but leaves the target directory empty.
package dataset

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"detlab/internal/fileutil"
	"detlab/internal/logging"
	"detlab/internal/settings"
)

// requiredKeys are the settings the fetch operation cannot run without.
var requiredKeys = []string{"api_key", "workspace", "project", "version", "format"}

// MissingKeysError names the required settings keys absent from the settings
// file. No network call is attempted when this is returned.
type MissingKeysError struct {
	Keys []string
}

func (e *MissingKeysError) Error() string {
	return fmt.Sprintf("missing required settings keys: %s", strings.Join(e.Keys, ", "))
}

// Downloader is the Roboflow client surface the fetcher uses.
type Downloader interface {
	Download(ctx context.Context, workspace, project, version, format, destDir string) error
	ExportLink(ctx context.Context, workspace, project, version, format string) (string, error)
	DownloadArchive(ctx context.Context, link, destDir string) error
}

// ClientFactory builds a Downloader for the given credentials. Tests swap it
// for a fake; production wires the roboflow client.
type ClientFactory func(apiKey string) (Downloader, error)

// Options configures a fetch.
type Options struct {
	Settings  map[string]any
	OutputDir string

	NewClient ClientFactory
	Logger    *slog.Logger
}

// Fetch validates the settings, downloads the dataset, and returns the
// resolved dataset directory. If the primary download leaves the directory
// empty, a manual export-link fallback is attempted exactly once; fallback
// failures are logged but never raised, and the original output directory is
// returned regardless.
func Fetch(ctx context.Context, opts Options) (string, error) {
	logger := logging.NewComponentLogger(opts.Logger, "dataset")

	if missing := settings.MissingKeys(opts.Settings, requiredKeys); len(missing) > 0 {
		return "", &MissingKeysError{Keys: missing}
	}

	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	absOutput, err := filepath.Abs(opts.OutputDir)
	if err != nil {
		return "", fmt.Errorf("resolve output directory: %w", err)
	}
	logger.Info("dataset output directory", logging.String("dir", absOutput))

	workspace := settings.StringValue(opts.Settings, "workspace")
	project := settings.StringValue(opts.Settings, "project")
	version := versionString(opts.Settings["version"])
	format := settings.StringValue(opts.Settings, "format")

	logger.Info("fetching dataset",
		logging.String("workspace", workspace),
		logging.String("project", project),
		logging.String("version", version),
		logging.String("format", format))

	client, err := opts.NewClient(settings.StringValue(opts.Settings, "api_key"))
	if err != nil {
		return "", fmt.Errorf("initialize roboflow client: %w", err)
	}

	if err := client.Download(ctx, workspace, project, version, format, absOutput); err != nil {
		return "", fmt.Errorf("download dataset: %w", err)
	}
	logListing(logger, absOutput, "after primary download")

	empty, err := fileutil.DirIsEmpty(absOutput)
	if err != nil {
		return "", fmt.Errorf("inspect output directory: %w", err)
	}
	if empty {
		logger.Warn("primary download left directory empty, attempting manual fallback",
			logging.String("dir", absOutput))
		fallback(ctx, logger, client, workspace, project, version, format, absOutput)
		logListing(logger, absOutput, "after fallback")
	}

	logger.Info("dataset location resolved", logging.String("dir", absOutput))
	return absOutput, nil
}

// fallback performs the manual export-link fetch. Every step is best-effort:
// a failure is logged and the function returns without raising.
func fallback(ctx context.Context, logger *slog.Logger, client Downloader, workspace, project, version, format, destDir string) {
	link, err := client.ExportLink(ctx, workspace, project, version, format)
	if err != nil {
		logger.Error("fallback export request failed", logging.Error(err))
		return
	}
	logger.Info("fallback export link resolved", logging.String("link", link))

	if err := client.DownloadArchive(ctx, link, destDir); err != nil {
		logger.Error("fallback archive download failed", logging.Error(err))
		return
	}
	logger.Info("fallback download complete", logging.String("dir", destDir))
}

func logListing(logger *slog.Logger, dir, stage string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.Warn("could not list directory", logging.String("dir", dir), logging.Error(err))
		return
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	logger.Debug("directory listing",
		logging.String("stage", stage),
		logging.String("dir", dir),
		logging.Int("entries", len(names)),
		logging.String("names", strings.Join(names, ",")))
}

// versionString renders the settings version value, which JSON may surface
// as a string or a number.
func versionString(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%d", int64(v))
	default:
		return fmt.Sprint(v)
	}
}

// RequiredKeys returns the settings keys the fetch operation validates.
func RequiredKeys() []string {
	return append([]string(nil), requiredKeys...)
}
