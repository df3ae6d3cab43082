// Package preprocess turns raw image bytes into model input tensors.
package preprocess

import (
	"bytes"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/Brownie44l1/dogbreed-api/internal/core"
	"github.com/Brownie44l1/dogbreed-api/internal/model"

	"github.com/gabriel-vasile/mimetype"
	"github.com/nfnt/resize"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// Decode sniffs and decodes an encoded image. Failures are BadInput errors.
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, core.BadInput(nil, "empty image payload")
	}

	mtype := mimetype.Detect(data)
	if !strings.HasPrefix(mtype.String(), "image/") {
		return nil, core.BadInput(nil, "unsupported content type %s, expected an image", mtype.String())
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, core.BadInput(err, "cannot decode %s image", mtype.String())
	}
	if img.Bounds().Empty() {
		return nil, core.BadInput(nil, "image has no pixels")
	}
	return img, nil
}

// Prepare stretches img to size x size, drops alpha, scales channels to
// [0,1] and adds a batch dimension. layout is core.LayoutNHWC or core.LayoutNCHW.
func Prepare(img image.Image, size int, layout string) model.Tensor {
	resized := resize.Resize(uint(size), uint(size), img, resize.Bicubic)
	bounds := resized.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	channels := core.DefaultChannels
	plane := width * height
	data := make([]float32, channels*plane)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			px := color.NRGBAModel.Convert(resized.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.NRGBA)
			r := float32(px.R) / 255.0
			g := float32(px.G) / 255.0
			b := float32(px.B) / 255.0

			pixelIndex := y*width + x
			if layout == core.LayoutNCHW {
				data[pixelIndex] = r
				data[plane+pixelIndex] = g
				data[2*plane+pixelIndex] = b
			} else {
				base := pixelIndex * channels
				data[base] = r
				data[base+1] = g
				data[base+2] = b
			}
		}
	}

	shape := []int64{1, int64(height), int64(width), int64(channels)}
	if layout == core.LayoutNCHW {
		shape = []int64{1, int64(channels), int64(height), int64(width)}
	}
	return model.Tensor{Shape: shape, Data: data}
}
