package granule

import (
	"fmt"
	"os"
	"slices"

	"github.com/bmatcuk/doublestar/v4"

	"gridappend/dataset"
	"gridappend/errs"
)

// DefaultPattern is the glob applied when a run names an input directory
// without a file pattern.
const DefaultPattern = "*.grn"

// OpenPattern reads every granule matching the glob pattern and combines
// them into one dataset sorted ascending along dim. Files are read in name
// order; the combined variable set is the first file's. No matching regular
// file is ErrNoMatch.
func OpenPattern(pattern, dim string) (*dataset.Dataset, error) {
	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", pattern, err)
	}

	var files []string
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		files = append(files, m)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: pattern %s", errs.ErrNoMatch, pattern)
	}
	slices.Sort(files)

	var combined *dataset.Dataset
	var names []string
	for _, path := range files {
		ds, err := Read(path)
		if err != nil {
			return nil, err
		}
		if combined == nil {
			names = ds.VarNames()
		}
		combined, err = dataset.Merge(combined, ds, names, dim)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	return combined, nil
}
