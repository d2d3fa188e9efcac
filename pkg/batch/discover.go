package batch

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/matzehuels/grainscale/pkg/errors"
	"github.com/matzehuels/grainscale/pkg/raster"
)

// Inputs maps each requested size to its clean source.
type Inputs struct {
	// Single is set when the input is one image shared by every size.
	Single string

	// BySize holds the discovered image per size in directory mode.
	BySize map[int]string

	// Missing records why a size has no source.
	Missing map[int]error
}

// Path returns the source for size, or "" when it is missing.
func (in *Inputs) Path(size int) string {
	if in.Single != "" {
		return in.Single
	}
	return in.BySize[size]
}

// Discover resolves the sources for sizes. A file input is used for every
// size. A directory input is searched for a {tag}_{size} subfolder per size
// (any *_{size} subfolder when tag is empty, first by name); inside it, the
// first jpg/jpeg/png by name is selected. Sizes with no match are recorded
// in Missing rather than failing the run.
func Discover(input, tag string, sizes []int) (*Inputs, error) {
	info, err := os.Stat(input)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "input %s", input)
		}
		return nil, errors.Wrap(errors.ErrCodeImageLoad, err, "input %s", input)
	}
	if !info.IsDir() {
		if !raster.IsSourceImage(input) {
			return nil, errors.New(errors.ErrCodeImageLoad, "input %s is not a jpg, jpeg or png image", input)
		}
		return &Inputs{Single: input}, nil
	}

	// ReadDir returns entries sorted by filename, which makes selection
	// deterministic.
	entries, err := os.ReadDir(input)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeImageLoad, err, "list %s", input)
	}

	in := &Inputs{BySize: make(map[int]string), Missing: make(map[int]error)}
	for _, size := range sizes {
		dir := findSizeDir(entries, tag, size)
		if dir == "" {
			in.Missing[size] = errors.New(errors.ErrCodeImageLoad, "no %s subfolder in %s", sizeDirPattern(tag, size), input)
			continue
		}
		path, err := FindImage(filepath.Join(input, dir))
		if err != nil {
			in.Missing[size] = err
			continue
		}
		in.BySize[size] = path
	}
	return in, nil
}

// FindImage returns the first jpg/jpeg/png in dir by filename.
func FindImage(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeImageLoad, err, "list %s", dir)
	}
	for _, e := range entries {
		if !e.IsDir() && raster.IsSourceImage(e.Name()) {
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", errors.New(errors.ErrCodeImageLoad, "no jpg, jpeg or png image in %s", dir)
}

func findSizeDir(entries []os.DirEntry, tag string, size int) string {
	suffix := "_" + strconv.Itoa(size)
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		if tag != "" {
			if name == tag+suffix {
				return name
			}
			continue
		}
		if strings.HasSuffix(name, suffix) && len(name) > len(suffix) {
			return name
		}
	}
	return ""
}

func sizeDirPattern(tag string, size int) string {
	if tag == "" {
		tag = "*"
	}
	return tag + "_" + strconv.Itoa(size)
}
