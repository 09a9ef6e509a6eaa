package headless

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/math"
)

// DepthImage renders the depth plane the same way the depth overlay shader
// does, as a grayscale image.
func (d *DepthTexture) DepthImage() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, int(d.width), int(d.height)))
	for y := uint32(0); y < d.height; y++ {
		for x := uint32(0); x < d.width; x++ {
			v := math.DepthIntensity(d.At(x, y))
			img.SetGray(int(x), int(y), color.Gray{Y: uint8(v*255.0 + 0.5)})
		}
	}
	return img
}

type encodeFunc func(w io.Writer, img image.Image) error

func encoderFor(format string) (encodeFunc, error) {
	switch strings.ToLower(format) {
	case "png":
		return png.Encode, nil
	case "bmp":
		return bmp.Encode, nil
	case "tif", "tiff":
		return func(w io.Writer, img image.Image) error {
			return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
		}, nil
	}
	return nil, fmt.Errorf("unsupported snapshot format '%s'", format)
}

// Encode writes the depth image in the given format: png, bmp or tiff.
func (d *DepthTexture) Encode(w io.Writer, format string) error {
	encode, err := encoderFor(format)
	if err != nil {
		return err
	}
	return encode(w, d.DepthImage())
}

// Snapshot writes the current depth attachment to path, picking the encoder
// from the file extension.
func (b *Backend) Snapshot(path string) error {
	depth := b.CurrentDepth()
	if depth == nil {
		return fmt.Errorf("%w: no depth attachment to snapshot", core.ErrInvalidState)
	}
	encode, err := encoderFor(strings.TrimPrefix(filepath.Ext(path), "."))
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := encode(f, depth.DepthImage()); err != nil {
		return err
	}
	core.LogInfo("depth snapshot %dx%d written to %s", depth.width, depth.height, path)
	return f.Close()
}
