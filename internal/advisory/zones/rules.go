// Package zones classifies coordinates into agro-climatic zones and builds
// crop recommendations from the static zone table, optionally refined by a
// generative model.
package zones

import "github.com/i474232898/agri-scout/internal/advisory"

// rule assigns zone when match holds.
type rule struct {
	name  string
	match func(lat, lon float64) bool
	zone  advisory.AgroZone
}

// rules is evaluated top to bottom and every matching rule overwrites the
// previous result, so the last match wins. The first rule always matches,
// which makes Classify total.
var rules = []rule{
	{
		name:  "default",
		match: func(lat, lon float64) bool { return true },
		zone:  advisory.ZoneDeccanPlateau,
	},
	{
		name:  "southern interior",
		match: func(lat, lon float64) bool { return lat < 23 },
		zone:  advisory.ZoneDeccanPlateau,
	},
	{
		name: "southern coasts",
		match: func(lat, lon float64) bool {
			return lat < 23 && (lat < 13 || lon < 74.5 || lon > 79.5)
		},
		zone: advisory.ZoneCoastal,
	},
	{
		name:  "western desert",
		match: func(lat, lon float64) bool { return lat >= 23 && lat < 28 && lon < 76 },
		zone:  advisory.ZoneArid,
	},
	{
		name:  "central plains",
		match: func(lat, lon float64) bool { return lat > 25 && lat < 28 && lon >= 76 },
		zone:  advisory.ZoneNorthernPlains,
	},
	{
		name:  "indo-gangetic plains",
		match: func(lat, lon float64) bool { return lat >= 28 && lat <= 32 },
		zone:  advisory.ZoneNorthernPlains,
	},
	{
		// Between 30 and 32 only the ranges east of the Punjab plains count.
		name:  "hills",
		match: func(lat, lon float64) bool { return lat > 32 || (lat > 30 && lon > 76.5) },
		zone:  advisory.ZoneHimalayan,
	},
	{
		// Beats the latitude bands above.
		name:  "eastern delta",
		match: func(lat, lon float64) bool { return lon > 87 && lat > 21 && lat < 27 },
		zone:  advisory.ZoneEasternDelta,
	},
}

// Classify returns the agro-climatic zone of coord. It is pure and total.
func Classify(coord advisory.Coordinate) advisory.AgroZone {
	zone := advisory.ZoneDeccanPlateau
	for _, r := range rules {
		if r.match(coord.Latitude, coord.Longitude) {
			zone = r.zone
		}
	}
	return zone
}
