package constant

const (
	CommandStart  = "start"
	CommandReport = "report"
	CommandCancel = "cancel"

	// SkipKeyword is matched case-insensitively at the media stage.
	SkipKeyword = "skip"

	LocationU1Office       = "U1 Office"
	LocationSimpangRenggam = "Simpang Renggam"

	SeverityLow    = "Low"
	SeverityMedium = "Medium"
	SeverityHigh   = "High"

	FallbackArea = "General Area"
)

// Locations are offered in this order at the location stage.
var Locations = []string{
	LocationU1Office,
	LocationSimpangRenggam,
}

var Severities = []string{
	SeverityLow,
	SeverityMedium,
	SeverityHigh,
}

// AreasByLocation is the per-location area vocabulary. Adding a site only
// needs a new entry here and in Locations.
var AreasByLocation = map[string][]string{
	LocationU1Office: {
		"Reception",
		"Pantry",
		"Meeting Room",
		"Open Office",
		"Server Room",
		"Car Park",
	},
	LocationSimpangRenggam: {
		"Production Floor",
		"Warehouse",
		"Loading Bay",
		"Maintenance Workshop",
		"Chemical Store",
		"Canteen",
	},
}

// AreasFor returns the area choices for a location, or the single
// fallback area when the location is not in the table.
func AreasFor(location string) []string {
	if areas, ok := AreasByLocation[location]; ok && len(areas) > 0 {
		out := make([]string, len(areas))
		copy(out, areas)
		return out
	}
	return []string{FallbackArea}
}
