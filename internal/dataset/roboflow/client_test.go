package roboflow

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New("", "https://api.roboflow.com")
	assert.Error(t, err)

	_, err = New("key", "  ")
	assert.Error(t, err)
}

func TestOptionsOverrideClients(t *testing.T) {
	metadata := &http.Client{}
	download := &http.Client{}

	client, err := New("secret", "https://api.roboflow.com",
		WithHTTPClient(metadata),
		WithDownloadClient(download),
		WithTimeout(3*time.Second))
	require.NoError(t, err)

	assert.Same(t, metadata, client.httpClient)
	assert.Same(t, download, client.downloadClient)
	assert.Equal(t, 3*time.Second, client.httpClient.Timeout)
}

func TestVersionResolvesMetadata(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/acme/traffic/3", r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("api_key"))
		_, _ = w.Write([]byte(`{"version":{"id":"acme/traffic/3","name":"v3","images":120}}`))
	}))
	defer server.Close()

	client, err := New("secret", server.URL)
	require.NoError(t, err)

	info, err := client.Version(context.Background(), "acme", "traffic", "3")
	require.NoError(t, err)
	assert.Equal(t, "acme/traffic/3", info.ID)
	assert.Equal(t, 120, info.Images)
}

func TestExportLinkRequiresLinkInResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"export":{}}`))
	}))
	defer server.Close()

	client, err := New("secret", server.URL)
	require.NoError(t, err)

	_, err = client.ExportLink(context.Background(), "acme", "traffic", "3", "yolov11")
	assert.ErrorContains(t, err, "no download link")
}

func TestExportLinkSurfacesHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client, err := New("bad-key", server.URL)
	require.NoError(t, err)

	_, err = client.ExportLink(context.Background(), "acme", "traffic", "3", "yolov11")
	assert.ErrorContains(t, err, "401")
}

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	writer := zip.NewWriter(&buf)
	for name, content := range files {
		entry, err := writer.Create(name)
		require.NoError(t, err)
		_, err = entry.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return buf.Bytes()
}

func TestDownloadArchiveExtractsZip(t *testing.T) {
	archive := buildZip(t, map[string]string{
		"data.yaml":             "nc: 2",
		"train/images/0001.jpg": "jpeg",
		"train/labels/0001.txt": "0 0.5 0.5 0.2 0.2",
	})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(archive)
	}))
	defer server.Close()

	client, err := New("secret", server.URL)
	require.NoError(t, err)

	dest := t.TempDir()
	require.NoError(t, client.DownloadArchive(context.Background(), server.URL+"/export.zip", dest))

	for _, path := range []string{"data.yaml", "train/images/0001.jpg", "train/labels/0001.txt"} {
		_, err := os.Stat(filepath.Join(dest, path))
		assert.NoError(t, err, path)
	}
}

func TestExtractZipRejectsEscapingEntries(t *testing.T) {
	var buf bytes.Buffer
	writer := zip.NewWriter(&buf)
	entry, err := writer.Create("../outside.txt")
	require.NoError(t, err)
	_, err = entry.Write([]byte("nope"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	archivePath := filepath.Join(t.TempDir(), "evil.zip")
	require.NoError(t, os.WriteFile(archivePath, buf.Bytes(), 0o644))

	err = ExtractZip(archivePath, t.TempDir())
	assert.ErrorContains(t, err, "escapes destination")
}
