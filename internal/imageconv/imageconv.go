// Package imageconv converts still images in a single call. There is no
// progress reporting; the call either writes the output or fails.
package imageconv

import (
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp" // decoder registration

	"github.com/gwlsn/mediaconv/internal/logger"
)

// Result mirrors the media conversion result without a job id.
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// ErrUnsupportedFormat is returned for targets with no available encoder.
var ErrUnsupportedFormat = errors.New("unsupported output format")

// JPEGQuality is the quality used for jpeg output.
const JPEGQuality = 90

type encodeFunc func(w io.Writer, img image.Image) error

var encoders = map[string]encodeFunc{
	"jpeg": func(w io.Writer, img image.Image) error {
		return jpeg.Encode(w, img, &jpeg.Options{Quality: JPEGQuality})
	},
	"png": png.Encode,
	"gif": func(w io.Writer, img image.Image) error {
		return gif.Encode(w, img, nil)
	},
	"bmp":  bmp.Encode,
	"tiff": func(w io.Writer, img image.Image) error {
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	},
}

// Normalize maps format aliases to their encoder name ("jpg" is "jpeg").
func Normalize(format string) string {
	f := strings.ToLower(strings.TrimSpace(format))
	switch f {
	case "jpg":
		return "jpeg"
	case "tif":
		return "tiff"
	}
	return f
}

// Supported reports whether format can be written.
func Supported(format string) bool {
	_, ok := encoders[Normalize(format)]
	return ok
}

// Convert decodes inputPath and writes it to outputPath as format.
func Convert(inputPath, outputPath, format string) Result {
	if err := convert(inputPath, outputPath, format); err != nil {
		logger.Warn("Image conversion failed", "input", inputPath, "format", format, "error", err)
		return Result{Success: false, Error: err.Error()}
	}
	logger.Info("Image converted", "input", inputPath, "output", outputPath, "format", format)
	return Result{Success: true}
}

func convert(inputPath, outputPath, format string) error {
	if inputPath == "" || outputPath == "" {
		return errors.New("input path and output path are required")
	}
	encode, ok := encoders[Normalize(format)]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	in, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer in.Close()

	img, _, err := image.Decode(in)
	if err != nil {
		return fmt.Errorf("decode %s: %w", inputPath, err)
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := encode(out, img); err != nil {
		out.Close()
		os.Remove(outputPath)
		return fmt.Errorf("encode %s: %w", Normalize(format), err)
	}
	return out.Close()
}
