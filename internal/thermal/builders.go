package thermal

// Air returns an air medium of the given volume in m³.
func Air(volume float64) Medium {
	return Medium{Name: "air", Volume: volume, Density: AirDensity, SpecificHeat: AirSpecificHeat}
}

// Water returns a water medium of the given volume in litres, one litre
// weighing one kilogram.
func Water(litres float64) Medium {
	return Medium{Name: "water", Mass: litres * WaterDensity / 1000, SpecificHeat: WaterSpecificHeat}
}

// WaterTank returns the water held by a tank measured in centimetres.
func WaterTank(lengthCm, widthCm, heightCm float64) Medium {
	return Water(lengthCm * widthCm * heightCm / 1000)
}

// Room is a box-shaped room with the five surfaces of the heater demo. Door
// and window areas are cut out of the wall area; the window is an aperture.
func Room(width, depth, height float64) Model {
	const (
		doorArea   = 1.8
		windowArea = 1.35
	)
	floor := width * depth
	walls := 2*(width+depth)*height - doorArea - windowArea

	return Model{
		Name: "room",
		Media: []Medium{
			Air(width * depth * height),
			{Name: "buffer", Mass: 50, SpecificHeat: AirSpecificHeat},
		},
		Surfaces: []Surface{
			{Name: "walls", U: 0.2, Area: walls},
			{Name: "door", U: 1.3, Area: doorArea},
			{Name: "window", U: 0.9, Area: windowArea, Aperture: true},
			{Name: "roof", U: 0.15, Area: floor},
			{Name: "ground", U: 0.3, Area: floor},
		},
	}
}
