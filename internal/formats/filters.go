package formats

import (
	"errors"
	"path/filepath"
	"slices"
	"strings"
)

// Filter is one entry of a file dialog filter list.
type Filter struct {
	Name       string   `json:"name"`
	Extensions []string `json:"extensions"`
}

var allFiles = Filter{Name: "All Files", Extensions: []string{"*"}}

func audioFilter() Filter { return Filter{Name: "Audio Files", Extensions: slices.Clone(AudioFormats)} }
func videoFilter() Filter { return Filter{Name: "Video Files", Extensions: slices.Clone(VideoFormats)} }

// OpenFilters returns the filters for picking an input file of the given kind.
func OpenFilters(kind Kind) []Filter {
	switch kind {
	case KindAudio:
		return []Filter{audioFilter(), allFiles}
	case KindVideo:
		return []Filter{videoFilter(), allFiles}
	default:
		return []Filter{allFiles}
	}
}

// SaveFilters returns the default file name and filters for a save dialog
// targeting format. An empty format offers every media filter.
func SaveFilters(format string) (string, []Filter) {
	if format == "" {
		return "output", []Filter{audioFilter(), videoFilter(), allFiles}
	}

	name := "output." + format
	switch KindOf(format) {
	case KindAudio:
		return name, []Filter{audioFilter(), allFiles}
	case KindVideo:
		return name, []Filter{videoFilter(), allFiles}
	default:
		return name, []Filter{allFiles}
	}
}

// ErrMissingOutputInput is returned by OutputPath when either argument is empty.
var ErrMissingOutputInput = errors.New("input path and format are required")

// OutputPath derives the default output location: the input's directory,
// its base name with a "_converted" suffix, and the target extension.
func OutputPath(inputPath, format string) (string, error) {
	if inputPath == "" || format == "" {
		return "", ErrMissingOutputInput
	}
	dir := filepath.Dir(inputPath)
	base := filepath.Base(inputPath)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, name+"_converted."+format), nil
}

