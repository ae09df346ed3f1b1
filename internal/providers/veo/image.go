package veo

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	_ "image/png"
	"os"

	"github.com/kauntdewn1/neo-prompts/internal/domain"
)

// MaxImageDimension bounds input images on their long edge. Larger images
// are downscaled and re-encoded as JPEG before submission to keep request
// payloads small.
const MaxImageDimension = 1024

const scaledJPEGQuality = 85

// PrepareImageFile loads and conditions one input image for submission.
func PrepareImageFile(path string) (*domain.ImageInput, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.NewConfigError("image", "%v", err)
	}
	return PrepareImage(raw)
}

// PrepareImage validates the encoded image and downscales anything larger
// than MaxImageDimension. JPEG and PNG are accepted; within-bounds images
// pass through untouched.
func PrepareImage(raw []byte) (*domain.ImageInput, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, domain.NewConfigError("image", "not a decodable image: %v", err)
	}
	switch format {
	case "jpeg", "png":
	default:
		return nil, domain.NewConfigError("image", "unsupported format %q, want jpeg or png", format)
	}
	if cfg.Width <= MaxImageDimension && cfg.Height <= MaxImageDimension {
		mime := "image/jpeg"
		if format == "png" {
			mime = "image/png"
		}
		return &domain.ImageInput{Data: raw, MIME: mime}, nil
	}

	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, domain.NewConfigError("image", "decode: %v", err)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, scaleDown(src, MaxImageDimension), &jpeg.Options{Quality: scaledJPEGQuality}); err != nil {
		return nil, fmt.Errorf("veo: encode scaled image: %w", err)
	}
	return &domain.ImageInput{Data: buf.Bytes(), MIME: "image/jpeg"}, nil
}

// scaleDown shrinks src so its long edge equals maxDim, averaging each
// destination pixel over its source box.
func scaleDown(src image.Image, maxDim int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	long := w
	if h > long {
		long = h
	}
	if long <= maxDim {
		return src
	}
	outW := w * maxDim / long
	outH := h * maxDim / long
	if outW < 1 {
		outW = 1
	}
	if outH < 1 {
		outH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, outW, outH))
	for y := 0; y < outH; y++ {
		sy0 := b.Min.Y + y*h/outH
		sy1 := b.Min.Y + (y+1)*h/outH
		if sy1 <= sy0 {
			sy1 = sy0 + 1
		}
		for x := 0; x < outW; x++ {
			sx0 := b.Min.X + x*w/outW
			sx1 := b.Min.X + (x+1)*w/outW
			if sx1 <= sx0 {
				sx1 = sx0 + 1
			}
			var r, g, bl, a, n uint64
			for sy := sy0; sy < sy1; sy++ {
				for sx := sx0; sx < sx1; sx++ {
					pr, pg, pb, pa := src.At(sx, sy).RGBA()
					r += uint64(pr)
					g += uint64(pg)
					bl += uint64(pb)
					a += uint64(pa)
					n++
				}
			}
			dst.SetRGBA(x, y, color.RGBA{
				R: uint8(r / n >> 8),
				G: uint8(g / n >> 8),
				B: uint8(bl / n >> 8),
				A: uint8(a / n >> 8),
			})
		}
	}
	return dst
}
