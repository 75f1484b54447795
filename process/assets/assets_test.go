package assets

import (
	"context"
	"image"
	"image/color"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cmsops/pkg/directus"
	"cmsops/pkg/directus/directustest"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// noisy images compress badly, which makes the byte budget bite.
func writeImage(t *testing.T, path string, w, h int) {
	t.Helper()
	rng := rand.New(rand.NewSource(int64(w * h)))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{uint8(rng.Intn(256)), uint8(rng.Intn(256)), uint8(rng.Intn(256)), 255})
		}
	}
	require.NoError(t, imaging.Save(img, path))
}

func TestIsSupportedExt(t *testing.T) {
	assert.True(t, isSupportedExt("danau-toba.JPG"))
	assert.True(t, isSupportedExt("a.webp"))
	assert.False(t, isSupportedExt("manifest.json"))
	assert.False(t, isSupportedExt(".hidden.png"))
	assert.False(t, isSupportedExt("notes.txt"))
}

func TestRunUploadsAndLinks(t *testing.T) {
	srv := directustest.New(t, directustest.Options{})
	srv.AddCollection("destinations", "id", "slug", "cover_image")
	srv.AddItems("destinations", directus.Item{"id": 5, "slug": "danau-toba"})

	dir := t.TempDir()
	writeImage(t, filepath.Join(dir, "Danau Toba.png"), 40, 30)
	writeImage(t, filepath.Join(dir, "pantai-unknown.jpg"), 20, 20)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("x"), 0o644))

	opts := Options{Dir: dir, Workers: 2, LinkCollection: "destinations", LinkField: "cover_image"}
	sum, err := Run(context.Background(), srv.Client(), opts, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Scanned)
	assert.Equal(t, 2, sum.Uploaded)
	assert.Equal(t, 1, sum.Linked)
	assert.Equal(t, 0, sum.Failed)

	files := srv.Files()
	require.Len(t, files, 2)
	var tobaID string
	for _, f := range files {
		if f.Title == "Danau Toba" {
			tobaID = f.ID
		}
	}
	require.NotEmpty(t, tobaID)
	assert.Equal(t, tobaID, srv.Items("destinations")[0]["cover_image"])

	man, err := loadManifest(dir)
	require.NoError(t, err)
	e, ok := man.get("Danau Toba.png")
	require.True(t, ok)
	assert.Equal(t, tobaID, e.FileID)
	assert.EqualValues(t, 5, e.LinkedItem)

	// a second run finds everything in the manifest
	sum, err = Run(context.Background(), srv.Client(), opts, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Skipped)
	assert.Len(t, srv.Files(), 2)
}

func TestRunDryRun(t *testing.T) {
	srv := directustest.New(t, directustest.Options{})
	dir := t.TempDir()
	writeImage(t, filepath.Join(dir, "a.png"), 10, 10)

	sum, err := Run(context.Background(), srv.Client(), Options{Dir: dir, DryRun: true}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Scanned)
	assert.Zero(t, sum.Uploaded)
	assert.Empty(t, srv.Files())
	assert.NoFileExists(t, filepath.Join(dir, ManifestName))
}

func TestDownscale(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "big.png")
	writeImage(t, src, 300, 200)
	fi, err := os.Stat(src)
	require.NoError(t, err)

	budget := fi.Size() / 4
	out, resized := downscale(src, t.TempDir(), fi.Size(), budget)
	require.True(t, resized)
	img, err := imaging.Open(out)
	require.NoError(t, err)
	assert.Less(t, img.Bounds().Dx(), 300)

	same, resized := downscale(src, t.TempDir(), fi.Size(), fi.Size())
	assert.False(t, resized)
	assert.Equal(t, src, same)

	broken := filepath.Join(dir, "broken.png")
	require.NoError(t, os.WriteFile(broken, []byte("not an image"), 0o644))
	same, resized = downscale(broken, t.TempDir(), 100, 10)
	assert.False(t, resized)
	assert.Equal(t, broken, same)
}

func TestRunRequiresLinkField(t *testing.T) {
	_, err := Run(context.Background(), nil, Options{Dir: t.TempDir(), LinkCollection: "destinations"}, nil)
	assert.ErrorContains(t, err, "link field")
}

func TestWatch(t *testing.T) {
	srv := directustest.New(t, directustest.Options{})
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan *Summary, 1)
	go func() {
		sum, err := Run(ctx, srv.Client(), Options{Dir: dir, Watch: true, Workers: 1}, nil)
		assert.NoError(t, err)
		done <- sum
	}()

	// the watcher is registered shortly after the initial scan
	time.Sleep(200 * time.Millisecond)
	writeImage(t, filepath.Join(dir, "pasar-ikan.png"), 12, 12)
	require.Eventually(t, func() bool { return len(srv.Files()) == 1 }, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case sum := <-done:
		assert.Equal(t, 1, sum.Uploaded)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
	assert.FileExists(t, filepath.Join(dir, ManifestName))
}
