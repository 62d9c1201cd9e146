package zones

import "github.com/i474232898/agri-scout/internal/advisory"

// Profile is the static reference data of one zone.
type Profile struct {
	Description string
	Soil        string
	Water       string
	Crops       []string
}

var table = map[advisory.AgroZone]Profile{
	advisory.ZoneHimalayan: {
		Description: "Cold, Mountainous, Temperate",
		Soil:        "Mountain Soil (Forest Soil)",
		Water:       "Rainfed / Snowmelt",
		Crops:       []string{"Apple", "Walnut", "Saffron", "Cherry", "Plum"},
	},
	advisory.ZoneNorthernPlains: {
		Description: "Temperate, Fertile Alluvial Soil",
		Soil:        "Alluvial Soil",
		Water:       "Irrigated (Canal/Tube well)",
		Crops:       []string{"Wheat", "Mustard", "Sugarcane", "Potato", "Sunflower"},
	},
	advisory.ZoneArid: {
		Description: "Hot, Dry, Desert-like",
		Soil:        "Desert/Sandy Soil",
		Water:       "Drought Resistant / Drip Irrigation",
		Crops:       []string{"Date Palm", "Bajra", "Jowar", "Guar", "Aloe Vera"},
	},
	advisory.ZoneDeccanPlateau: {
		Description: "Semi-Arid, Black/Red Soil",
		Soil:        "Black Cotton Soil / Red Loamy",
		Water:       "Rainfed / Tank Irrigation",
		Crops:       []string{"Cotton", "Soybean", "Tur (Pigeon Pea)", "Custard Apple", "Maize"},
	},
	advisory.ZoneCoastal: {
		Description: "Hot, Humid, High Rainfall",
		Soil:        "Laterite / Coastal Alluvium",
		Water:       "Rainfed / High Moisture",
		Crops:       []string{"Rice", "Coconut", "Rubber", "Black Pepper", "Arecanut", "Banana"},
	},
	advisory.ZoneEasternDelta: {
		Description: "Wet, Marshy, Heavy Rainfall",
		Soil:        "Peaty / Marshy Soil",
		Water:       "Flood Prone / Abundant Water",
		Crops:       []string{"Jute", "Rice", "Betel nut"},
	},
}

// Lookup returns the profile of zone. Unknown zones get the Deccan Plateau
// profile. The crop slice is a copy.
func Lookup(zone advisory.AgroZone) Profile {
	p, ok := table[zone]
	if !ok {
		p = table[advisory.ZoneDeccanPlateau]
	}
	p.Crops = append([]string(nil), p.Crops...)
	return p
}
