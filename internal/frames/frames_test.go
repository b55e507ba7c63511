package frames

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"detlab/internal/logging"
)

// fakeTranscoder pretends to be ffmpeg: it drops framesPerVideo images into
// the temp pattern directory, or exits non-zero for inputs containing "bad".
func fakeTranscoder(t *testing.T, framesPerVideo int) func() {
	t.Helper()
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		input := ""
		for i, arg := range args {
			if arg == "-i" && i+1 < len(args) {
				input = args[i+1]
			}
		}
		if strings.Contains(input, "bad") {
			return exec.CommandContext(ctx, "sh", "-c", "echo 'decoder error' >&2; exit 1")
		}
		pattern := args[len(args)-1]
		dir := filepath.Dir(pattern)
		var script strings.Builder
		for i := 1; i <= framesPerVideo; i++ {
			fmt.Fprintf(&script, "printf x > %s/tmp_%06d.jpg\n", dir, i)
		}
		return exec.CommandContext(ctx, "sh", "-c", script.String())
	}
	return func() { commandContext = original }
}

func TestExtractMissingInputIsNoOp(t *testing.T) {
	out := t.TempDir()
	summary, err := Extract(context.Background(), Options{
		InputDir:  filepath.Join(t.TempDir(), "missing"),
		OutputDir: out,
		Logger:    logging.NewNop(),
	})
	require.NoError(t, err)
	assert.Zero(t, summary.FramesExtracted)
	assert.Empty(t, summary.SessionDir)

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Empty(t, entries, "no session directory should be created")
}

func TestExtractNoVideosLogsAndReturns(t *testing.T) {
	restore := fakeTranscoder(t, 2)
	defer restore()

	summary, err := Extract(context.Background(), Options{
		InputDir:  t.TempDir(),
		OutputDir: t.TempDir(),
		Logger:    logging.NewNop(),
	})
	require.NoError(t, err)
	assert.Zero(t, summary.VideosFound)
	assert.Zero(t, summary.FramesExtracted)
}

func TestExtractNumbersFramesContiguouslyAcrossBatch(t *testing.T) {
	const framesPerVideo = 3
	restore := fakeTranscoder(t, framesPerVideo)
	defer restore()

	input := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(input, "nested"), 0o755))
	for _, name := range []string{"a.mp4", "nested/b.MP4", "c.mp4"} {
		require.NoError(t, os.WriteFile(filepath.Join(input, name), []byte("vid"), 0o644))
	}

	summary, err := Extract(context.Background(), Options{
		InputDir:  input,
		OutputDir: t.TempDir(),
		FPS:       1.0,
		Logger:    logging.NewNop(),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, summary.VideosFound)
	assert.Equal(t, 3, summary.VideosProcessed)
	assert.Equal(t, 3*framesPerVideo, summary.FramesExtracted)

	produced, err := filepath.Glob(filepath.Join(summary.SessionDir, "frame_*.jpg"))
	require.NoError(t, err)
	sort.Strings(produced)
	require.Len(t, produced, 3*framesPerVideo)
	for i, path := range produced {
		assert.Equal(t, fmt.Sprintf("frame_%06d.jpg", i+1), filepath.Base(path),
			"frame numbering must be contiguous with no gaps or resets")
	}
}

func TestExtractSkipsFailingVideoAndContinues(t *testing.T) {
	const framesPerVideo = 2
	restore := fakeTranscoder(t, framesPerVideo)
	defer restore()

	input := t.TempDir()
	for _, name := range []string{"a.mp4", "bad.mp4", "c.mp4"} {
		require.NoError(t, os.WriteFile(filepath.Join(input, name), []byte("vid"), 0o644))
	}

	summary, err := Extract(context.Background(), Options{
		InputDir:  input,
		OutputDir: t.TempDir(),
		Logger:    logging.NewNop(),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, summary.VideosFound)
	assert.Equal(t, 2, summary.VideosProcessed)
	assert.Equal(t, 1, summary.VideosFailed)
	assert.Equal(t, 2*framesPerVideo, summary.FramesExtracted)

	produced, err := filepath.Glob(filepath.Join(summary.SessionDir, "frame_*.jpg"))
	require.NoError(t, err)
	assert.Len(t, produced, 2*framesPerVideo)
}

func TestDiscoverVideosSortedLexicographically(t *testing.T) {
	input := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(input, "sub"), 0o755))
	for _, name := range []string{"z.mp4", "a.mp4", "sub/m.mp4", "skip.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(input, name), nil, 0o644))
	}

	videos, err := discoverVideos(input)
	require.NoError(t, err)
	require.Len(t, videos, 3)
	assert.True(t, sort.StringsAreSorted(videos))
	assert.Equal(t, "a.mp4", filepath.Base(videos[0]))
}
