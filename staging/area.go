package staging

import (
	"errors"
	"os"
	"sync"
)

// Area is one staged directory tree. Release is idempotent; the first call
// removes the tree.
type Area struct {
	dir  string
	once sync.Once
	err  error
}

// Dir returns the local root of the staged tree.
func (a *Area) Dir() string {
	return a.dir
}

// Release removes the staged tree.
func (a *Area) Release() error {
	a.once.Do(func() {
		a.err = os.RemoveAll(a.dir)
	})

	return a.err
}

// ReleaseSet owns staged areas for the lifetime of a run and tears them down
// in reverse acquisition order.
type ReleaseSet struct {
	areas []*Area
}

// Add records an area for teardown.
func (rs *ReleaseSet) Add(a *Area) {
	rs.areas = append(rs.areas, a)
}

// ReleaseAll releases every recorded area, newest first, and joins any
// removal errors. It is safe to call more than once.
func (rs *ReleaseSet) ReleaseAll() error {
	var errs []error
	for i := len(rs.areas) - 1; i >= 0; i-- {
		if err := rs.areas[i].Release(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
