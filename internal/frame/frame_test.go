package frame

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"mos-align/pkg/geometry"
)

func TestLoad_PNGLuminance(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 8, 6))
	for y := 0; y < 6; y++ {
		for x := 0; x < 8; x++ {
			img.Pix[y*img.Stride+x] = uint8(10 * x)
		}
	}

	path := filepath.Join(t.TempDir(), "exposure.png")
	fh, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(fh, img))
	require.NoError(t, fh.Close())

	f, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 8, f.W)
	require.Equal(t, 6, f.H)
	// Gray pixels survive the luminance conversion exactly.
	require.Equal(t, 0.0, f.At(0, 0))
	require.Equal(t, 30.0, f.At(3, 4))
	require.Equal(t, 70.0, f.At(7, 1))
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.png"))
	require.Error(t, err)
}

func TestCutout_OriginAndData(t *testing.T) {
	f := New(20, 20)
	f.Set(5, 7, 42)

	c, err := f.Cutout(geometry.NewBox(3, 6, 9, 10))
	require.NoError(t, err)
	require.Equal(t, 3, c.X0)
	require.Equal(t, 6, c.Y0)
	require.Equal(t, 6, c.W)
	require.Equal(t, 4, c.H)
	require.Equal(t, 42.0, c.At(5-c.X0, 7-c.Y0))
}

func TestCutout_ClampsToFrame(t *testing.T) {
	f := New(20, 20)
	c, err := f.Cutout(geometry.NewBox(-5, -5, 10, 10))
	require.NoError(t, err)
	require.Equal(t, 0, c.X0)
	require.Equal(t, 0, c.Y0)
	require.Equal(t, 10, c.W)
	require.Equal(t, 10, c.H)
}

func TestCutout_OutsideFrame(t *testing.T) {
	f := New(20, 20)
	_, err := f.Cutout(geometry.NewBox(100, 100, 150, 150))
	require.Error(t, err)
}

func TestAddBlob_PeaksAtCoordinate(t *testing.T) {
	f := New(50, 50)
	f.AddBlob(25, 25, 2, 100)

	// A blob at coordinate (25, 25) peaks at pixel index 25.5, so indices
	// 25 and 26 share the peak symmetrically.
	require.InDelta(t, f.At(25, 25), f.At(26, 26), 1e-9)
	require.Greater(t, f.At(25, 25), f.At(23, 25))
}
