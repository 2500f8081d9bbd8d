package sltm

var (
	junctionTypes = map[string]struct{}{
		"circular":   {},
		"roundabout": {},
	}

	onewayReversible = map[string]struct{}{
		"reversible":  {},
		"alternating": {},
	}

	// restrictedAccess are values of `access` / `motor_vehicle` / `motorcar` tags closing way for cars
	restrictedAccess = map[string]struct{}{
		"no":           {},
		"private":      {},
		"agricultural": {},
		"forestry":     {},
		"delivery":     {},
	}
)
