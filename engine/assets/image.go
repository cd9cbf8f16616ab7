package assets

import (
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
)

// Image is a decoded asset in the tightly packed RGBA8 form texture
// uploads expect.
type Image struct {
	Width  uint32
	Height uint32
	Pixels []byte
}

// LoadImage decodes a png, jpeg or bmp file into RGBA8 bytes.
func LoadImage(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("func LoadImage: %w", err)
	}
	defer f.Close()

	decoded, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("func LoadImage: decoding %s: %w", path, err)
	}

	bounds := decoded.Bounds()
	rgba, ok := decoded.(*image.RGBA)
	if !ok || rgba.Stride != bounds.Dx()*4 {
		rgba = image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(rgba, rgba.Bounds(), decoded, bounds.Min, draw.Src)
	}

	return &Image{
		Width:  uint32(bounds.Dx()),
		Height: uint32(bounds.Dy()),
		Pixels: rgba.Pix,
	}, nil
}
