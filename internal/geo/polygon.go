package geo

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/t288matt/vatpac-stats-sub002/internal/xerrors"
)

// Polygon is a loaded boundary ring, cached by source file path. Ring
// points are [lon, lat] pairs, matching GeoJSON ordering.
type Polygon struct {
	Ring [][2]float64
}

// Contains reports whether p lies inside the polygon's ring.
func (poly *Polygon) Contains(p Point) bool {
	return PointInPolygon(p, poly.Ring)
}

var (
	polygonCacheMu sync.RWMutex
	polygonCache   = map[string]*Polygon{}
)

// LoadPolygon reads and parses a boundary polygon from a JSON file
// containing a flat array of [lon, lat] pairs, e.g.:
//
//	[[153.0, -27.0], [154.0, -27.0], [154.0, -28.0], [153.0, -28.0]]
//
// Results are cached by path: the file is read once, then served from
// memory on every subsequent call. This is safe for concurrent callers
// since the filter pipeline only ever reads the boundary, never
// mutates it at runtime.
func LoadPolygon(path string) (*Polygon, error) {
	polygonCacheMu.RLock()
	if p, ok := polygonCache[path]; ok {
		polygonCacheMu.RUnlock()
		return p, nil
	}
	polygonCacheMu.RUnlock()

	polygonCacheMu.Lock()
	defer polygonCacheMu.Unlock()

	// Re-check under the write lock in case another goroutine loaded it
	// while we were waiting.
	if p, ok := polygonCache[path]; ok {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, xerrors.NewConfigError("BOUNDARY_POLYGON_FILE", "reading boundary polygon %s: %v", path, err)
	}

	var ring [][2]float64
	if err := json.Unmarshal(data, &ring); err != nil {
		return nil, xerrors.NewConfigError("BOUNDARY_POLYGON_FILE", "parsing boundary polygon %s: %v", path, err)
	}
	if len(ring) < 3 {
		return nil, xerrors.NewConfigError("BOUNDARY_POLYGON_FILE", "boundary polygon %s has fewer than 3 points", path)
	}

	poly := &Polygon{Ring: ring}
	polygonCache[path] = poly
	return poly, nil
}
