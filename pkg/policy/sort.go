package policy

import (
	"slices"

	"github.com/Sriram-PR/headless-crawler/pkg/models"
)

// BreadthFirst dispatches shallow links first, keeping queue order among
// equal depths.
func BreadthFirst(pending []models.SiteLink) ([]models.SiteLink, error) {
	sorted := slices.Clone(pending)
	slices.SortStableFunc(sorted, func(a, b models.SiteLink) int {
		return a.LinkDepth - b.LinkDepth
	})
	return sorted, nil
}

// DepthFirst dispatches the deepest links first, keeping queue order among
// equal depths.
func DepthFirst(pending []models.SiteLink) ([]models.SiteLink, error) {
	sorted := slices.Clone(pending)
	slices.SortStableFunc(sorted, func(a, b models.SiteLink) int {
		return b.LinkDepth - a.LinkDepth
	})
	return sorted, nil
}
