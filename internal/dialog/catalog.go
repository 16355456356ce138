package dialog

// Option is one entry of a passenger-attribute catalog. Indexes mirror the
// fare model's training encoding and must not be renumbered.
type Option struct {
	Label string
	Index int
}

var (
	AgeGroups = []Option{
		{Label: "Child (0-12)", Index: 0},
		{Label: "Teenager (13-19)", Index: 1},
		{Label: "Adult (20-59)", Index: 2},
		{Label: "Senior (60+)", Index: 3},
	}

	TrafficLevels = []Option{
		{Label: "Low (1)", Index: 1},
		{Label: "Medium (2)", Index: 2},
		{Label: "High (3)", Index: 3},
	}
)

// AgeGroupLabel resolves an age-group index to its human label.
func AgeGroupLabel(index int) (string, bool) {
	return optionLabel(AgeGroups, index)
}

// TrafficLevelLabel resolves a traffic-level index to its human label.
func TrafficLevelLabel(index int) (string, bool) {
	return optionLabel(TrafficLevels, index)
}

func optionLabel(opts []Option, index int) (string, bool) {
	for _, o := range opts {
		if o.Index == index {
			return o.Label, true
		}
	}
	return "", false
}
