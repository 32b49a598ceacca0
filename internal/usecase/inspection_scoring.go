package usecase

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"vehicle-rental/internal/data/entity"
)

// completenessFields is the checklist items plus mileage, energy, documents
// and accessories.
var completenessFields = len(entity.CarChecklistCodes) + 4

// ComputeContentHash fingerprints the evidence of an inspection. Item lines
// are sorted so the hash does not depend on submission order.
func ComputeContentHash(i *entity.Inspection) string {
	lines := make([]string, 0, len(i.Items)+2)
	for _, item := range i.Items {
		lines = append(lines, item.Code+"|"+item.PhotoURL)
	}
	sort.Strings(lines)
	lines = append(lines, "mileage:"+intField(i.Mileage), "energy:"+intField(i.EnergyLevel))

	sum := sha256.Sum256([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(sum[:])
}

func intField(v *int) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%d", *v)
}

// ScoreInspection rates an inspection 0-100 on each axis. reference is the
// moment the inspection was due (rental start for DEPART, end for RETOUR).
func ScoreInspection(i *entity.Inspection, reference time.Time, hostRejectedClaims, renterUpheldClaims int64) entity.InspectionScore {
	s := entity.InspectionScore{
		HostReliability:   clampScore(100 - 15*int(hostRejectedClaims)),
		RenterReliability: clampScore(100 - 20*int(renterUpheldClaims)),
	}

	expected := len(entity.CarChecklistCodes)
	var filled, photos, geo int
	for _, item := range i.Items {
		if item.PhotoURL != "" {
			photos++
		}
		if item.GeoTagged() {
			geo++
		}
		if item.PhotoURL != "" && item.Condition != "" && item.Cleanliness != "" {
			filled++
		}
	}
	if i.Mileage != nil {
		filled++
	}
	if i.EnergyLevel != nil {
		filled++
	}
	if i.DocumentsPresent != nil {
		filled++
	}
	if len(i.Accessories) > 0 {
		filled++
	}

	s.Completeness = percent(filled, completenessFields)
	s.PhotoCoverage = percent(photos, expected)
	s.GeoTagging = percent(geo, expected)
	s.Timeliness = timelinessScore(i.SubmittedAt, reference)

	total := s.HostReliability + s.RenterReliability + s.Completeness + s.PhotoCoverage + s.GeoTagging + s.Timeliness
	s.Overall = int(math.Round(float64(total) / 6))
	return s
}

// timelinessScore is 100 within two hours of the reference and decays
// linearly to 0 at a day.
func timelinessScore(submittedAt *time.Time, reference time.Time) int {
	if submittedAt == nil {
		return 0
	}
	delay := submittedAt.Sub(reference)
	if delay < 0 {
		delay = -delay
	}
	const (
		grace = 2 * time.Hour
		limit = 24 * time.Hour
	)
	switch {
	case delay <= grace:
		return 100
	case delay >= limit:
		return 0
	}
	return int(math.Round(100 * float64(limit-delay) / float64(limit-grace)))
}

func percent(n, of int) int {
	if of == 0 {
		return 0
	}
	return clampScore(int(math.Round(100 * float64(n) / float64(of))))
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
