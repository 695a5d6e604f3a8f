package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// heicCommands maps a converter name to its argv for (in, out).
var heicCommands = map[string]func(in, out string) []string{
	"heif-convert": func(in, out string) []string { return []string{in, out} },
	"magick":       func(in, out string) []string { return []string{in, out} },
	"sips":         func(in, out string) []string { return []string{"-s", "format", "png", in, "--out", out} },
}

// convertHEICtoPNG converts a HEIC/HEIF file to a PNG in a fresh temp dir
// under scratch. The returned cleanup removes that dir and is non-nil whenever
// the dir was created, even on error.
func convertHEICtoPNG(ctx context.Context, r Runner, converter, in, scratch string) (string, []string, func(), error) {
	argv, ok := heicCommands[converter]
	if !ok {
		return "", nil, nil, fmt.Errorf("HEIC not supported: set HEIC_CONVERTER to one of: heif-convert | magick | sips")
	}

	tmpDir, err := os.MkdirTemp(scratch, "heic-*")
	if err != nil {
		return "", nil, nil, err
	}
	cleanup := func() { _ = os.RemoveAll(tmpDir) }
	out := filepath.Join(tmpDir, "image.png")

	if _, errb, err := r.Run(ctx, converter, argv(in, out)...); err != nil {
		return "", []string{string(errb)}, cleanup, commandError(converter, err, errb)
	}
	if _, statErr := os.Stat(out); statErr != nil {
		return "", nil, cleanup, fmt.Errorf("HEIC conversion produced no output: %v", statErr)
	}
	return out, nil, cleanup, nil
}
