package mapview

import (
	"fmt"
	"math"
	"sort"

	"github.com/mr1hm/crisiswatch/internal/models"
)

// Grid clustering: the map is cut into square cells whose size halves with
// each zoom level, and cells holding two or more markers collapse into one
// cluster. Each source stream clusters independently.
const (
	clusterMinCount = 2
	cellsPerTile    = 8
)

// Marker is a single event rendered on the map.
type Marker struct {
	EventID   string
	Source    models.Source
	Latitude  float64
	Longitude float64
	Severity  models.Severity
	Opacity   float64
	Scale     float64
}

// Cluster is a collapsed cell of markers.
type Cluster struct {
	Latitude    float64
	Longitude   float64
	Count       int
	MaxSeverity models.Severity
	EventIDs    []string
}

// ClusterGroup is the rendered form of one source stream.
type ClusterGroup struct {
	Source   models.Source
	Markers  []Marker
	Clusters []Cluster
}

func cellSizeDeg(zoom float64) float64 {
	return 360 / math.Exp2(zoom) / cellsPerTile
}

// buildGroup lays one source stream out into markers and clusters. Hovered and
// selected events never cluster so their scaling stays visible.
func buildGroup(source models.Source, markers []Marker, zoom float64, pinned map[string]bool) (ClusterGroup, error) {
	group := ClusterGroup{Source: source}

	cell := cellSizeDeg(zoom)
	if math.IsNaN(cell) || math.IsInf(cell, 0) || cell <= 0 {
		return group, fmt.Errorf("cluster layout: bad cell size %v at zoom %v", cell, zoom)
	}

	type bucket struct {
		markers []Marker
	}
	cells := make(map[[2]int]*bucket)
	for _, m := range markers {
		if pinned[m.EventID] {
			group.Markers = append(group.Markers, m)
			continue
		}
		key := [2]int{int(math.Floor(m.Latitude / cell)), int(math.Floor(m.Longitude / cell))}
		b := cells[key]
		if b == nil {
			b = &bucket{}
			cells[key] = b
		}
		b.markers = append(b.markers, m)
	}

	for _, b := range cells {
		if len(b.markers) < clusterMinCount {
			group.Markers = append(group.Markers, b.markers...)
			continue
		}
		c := Cluster{Count: len(b.markers), MaxSeverity: models.SeverityUnknown}
		for _, m := range b.markers {
			c.Latitude += m.Latitude
			c.Longitude += m.Longitude
			c.EventIDs = append(c.EventIDs, m.EventID)
			if m.Severity.Rank() > c.MaxSeverity.Rank() {
				c.MaxSeverity = m.Severity
			}
		}
		c.Latitude /= float64(c.Count)
		c.Longitude /= float64(c.Count)
		sort.Strings(c.EventIDs)
		group.Clusters = append(group.Clusters, c)
	}

	// Map iteration order is random; keep output stable for snapshot diffing.
	sort.Slice(group.Markers, func(i, j int) bool { return group.Markers[i].EventID < group.Markers[j].EventID })
	sort.Slice(group.Clusters, func(i, j int) bool {
		a, b := group.Clusters[i], group.Clusters[j]
		if a.Latitude != b.Latitude {
			return a.Latitude < b.Latitude
		}
		return a.Longitude < b.Longitude
	})
	return group, nil
}
