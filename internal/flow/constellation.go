package flow

import "github.com/ashureev/cosmic-journey/internal/domain"

// ConstellationFor returns the fixed constellation for path. The mapping is
// total: anything other than reflection yields the wonder constellation.
// Each call returns a fresh copy.
func ConstellationFor(path domain.Path) domain.Constellation {
	if path == domain.PathReflection {
		return domain.Constellation{
			Path:        domain.PathReflection,
			Label:       "The Consciousness Debugger",
			Description: "A constellation that rewrites your inner code, freeing you from the matrix of limiting beliefs",
			Points: []domain.Point{
				{X: 80, Y: 60}, {X: 120, Y: 40}, {X: 160, Y: 80},
				{X: 100, Y: 140}, {X: 180, Y: 160}, {X: 140, Y: 200},
				{X: 200, Y: 120}, {X: 60, Y: 180},
			},
			Connections: []domain.Connection{
				{0, 1}, {1, 2}, {2, 6}, {0, 3}, {3, 5}, {5, 7}, {4, 6},
			},
		}
	}
	return domain.Constellation{
		Path:        domain.PathWonder,
		Label:       "The Reality Hacker",
		Description: "A constellation that maps the escape routes from the cosmic simulation",
		Points: []domain.Point{
			{X: 100, Y: 100}, {X: 150, Y: 80}, {X: 200, Y: 120},
			{X: 180, Y: 200}, {X: 250, Y: 180}, {X: 300, Y: 220},
			{X: 120, Y: 300}, {X: 280, Y: 320},
		},
		Connections: []domain.Connection{
			{0, 1}, {1, 2}, {3, 4}, {4, 5},
		},
	}
}

// ShareText is the message offered when a visitor shares their result.
func ShareText(path *domain.Path) string {
	label := domain.PathWonder.Label()
	if path != nil && path.Valid() {
		label = path.Label()
	}
	return "I just completed the Path of " + label + " on my cosmic journey and discovered my unique constellation!"
}
