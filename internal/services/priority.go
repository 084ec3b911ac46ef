package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/aawaaz/grievance-engine/internal/geo"
	"github.com/aawaaz/grievance-engine/internal/models"
)

// Sub-score caps. They sum to 100.
const (
	maxSeverityScore   = 40
	maxZoneScore       = 25
	maxPopulationScore = 20
	maxDuplicateScore  = 15
	maxPriorityScore   = 100

	nearZoneRadiusKm = 2.0

	duplicateWindow  = 7 * 24 * time.Hour
	duplicateBoxDeg  = 0.005
	duplicatesCapped = 3
	pointsPerDupe    = 5
)

var severityScores = map[models.Severity]int{
	models.SeverityCritical: 40,
	models.SeverityHigh:     30,
	models.SeverityMedium:   20,
	models.SeverityLow:      10,
}

// DuplicateCounter counts same-category complaints inside a bounding box
// created at or after since.
type DuplicateCounter interface {
	CountNearby(ctx context.Context, category string, box BoundingBox, since time.Time) (int, error)
}

// BoundingBox is an inclusive lat/lng rectangle
type BoundingBox struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

// DuplicateBox returns the ±0.005° box around a point
func DuplicateBox(lat, lng float64) BoundingBox {
	return BoundingBox{
		MinLat: lat - duplicateBoxDeg, MaxLat: lat + duplicateBoxDeg,
		MinLng: lng - duplicateBoxDeg, MaxLng: lng + duplicateBoxDeg,
	}
}

// PriorityScorer computes the 0-100 urgency score for a new complaint
type PriorityScorer struct {
	zones *geo.Index
	dupes DuplicateCounter
	now   func() time.Time
}

// NewPriorityScorer creates a scorer over a zone index and duplicate source
func NewPriorityScorer(zones *geo.Index, dupes DuplicateCounter) *PriorityScorer {
	return &PriorityScorer{zones: zones, dupes: dupes, now: time.Now}
}

// Score combines severity, zone proximity, population density and nearby
// duplicates. Inputs are validated upstream; only the duplicate lookup can fail.
func (p *PriorityScorer) Score(ctx context.Context, severity models.Severity, lat, lng float64, category string) (models.PriorityResult, error) {
	count, err := p.dupes.CountNearby(ctx, category, DuplicateBox(lat, lng), p.now().Add(-duplicateWindow))
	if err != nil {
		return models.PriorityResult{}, fmt.Errorf("count nearby duplicates: %w", err)
	}
	return ComputePriority(p.zones, severity, lat, lng, count), nil
}

// ComputePriority is the pure scoring formula given a duplicate count
func ComputePriority(zones *geo.Index, severity models.Severity, lat, lng float64, duplicates int) models.PriorityResult {
	zoneScore, zoneLabel := ZoneScore(zones, lat, lng)
	b := models.PriorityBreakdown{
		Severity:   SeverityScore(severity),
		Zone:       zoneScore,
		ZoneLabel:  zoneLabel,
		Population: PopulationScore(lat, lng),
		Duplicates: DuplicateScore(duplicates),
	}

	total := b.Severity + b.Zone + b.Population + b.Duplicates
	if total > maxPriorityScore {
		total = maxPriorityScore
	}
	return models.PriorityResult{Total: total, Breakdown: b}
}

// SeverityScore maps a severity to its fixed weight; unknown values score as LOW
func SeverityScore(s models.Severity) int {
	if v, ok := severityScores[s]; ok {
		return v
	}
	return severityScores[models.SeverityLow]
}

// ZoneScore awards the full zone weight inside a critical zone, a linear
// falloff within 2 km of the nearest one, and nothing beyond.
func ZoneScore(zones *geo.Index, lat, lng float64) (int, *string) {
	if zones == nil {
		return 0, nil
	}
	if z, ok := zones.Containing(lat, lng); ok {
		label := z.Name
		return maxZoneScore, &label
	}

	z, d, ok := zones.Nearest(lat, lng)
	if !ok || d >= nearZoneRadiusKm {
		return 0, nil
	}
	score := clamp(int(math.Round(maxZoneScore*(1-d/nearZoneRadiusKm))), 0, maxZoneScore)
	label := "Near " + z.Name
	return score, &label
}

// PopulationScore is a deterministic density proxy in [0, 20]. It stands in
// for a real density grid and must stay a pure function of the coordinates.
func PopulationScore(lat, lng float64) int {
	v := math.Abs(math.Sin(lat*1000+lng*3000)) * maxPopulationScore
	return clamp(int(math.Round(v)), 0, maxPopulationScore)
}

// DuplicateScore awards 5 points per nearby recent duplicate, capped at 3
func DuplicateScore(count int) int {
	if count < 0 {
		count = 0
	}
	if count > duplicatesCapped {
		count = duplicatesCapped
	}
	return clamp(count*pointsPerDupe, 0, maxDuplicateScore)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
