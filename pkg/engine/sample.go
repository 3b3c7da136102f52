package engine

// SampleDefinition returns a small six-node day: the protagonist can make a
// critical choice, learn a secret, and use it to reach the good ending, or die.
func SampleDefinition() *GraphDefinition {
	half := 0.5
	return &GraphDefinition{
		Meta: MetaDefinition{
			Name:           "Sample Day",
			Description:    "Learn the secret before the end of the day",
			TotalTimeSlots: 4,
			Version:        DefaultGraphVersion,
		},
		Characters: map[string]map[string]interface{}{
			"key_decisions": {
				"choice_a":   0,
				"choice_b":   1,
				"revelation": 2,
			},
		},
		Locations: []string{"home", "street", "station"},
		Facts: FactsDefinition{
			Discoverable: []string{"SECRET_X"},
			WorldState:   []string{"SISTER_ALIVE"},
		},
		Nodes: []NodeDefinition{
			{ID: "start", Name: "Wake up", TimeSlot: 0, Type: "soft", Location: "home"},
			{ID: "choice_a", Name: "Follow the stranger", TimeSlot: 1, Type: "critical", Location: "street"},
			{ID: "choice_b", Name: "Stay home", TimeSlot: 1, Type: "soft", Location: "home"},
			{ID: "revelation", Name: "Overhear the plan", TimeSlot: 2, Type: "revelation", Location: "station", Effects: []string{"LEARN:SECRET_X"}},
			{ID: "death", Name: "The explosion", TimeSlot: 3, Type: "death", Location: "station"},
			{ID: "success", Name: "Save her", TimeSlot: 3, Type: "soft", Location: "station",
				Preconditions: []string{"KNOW:SECRET_X"}, Effects: []string{"SET:SISTER_ALIVE"}},
		},
		Transitions: []TransitionDefinition{
			{From: "start", To: "choice_a"},
			{From: "start", To: "choice_b"},
			{From: "choice_a", To: "revelation"},
			{From: "choice_a", To: "death", Probability: &half},
			{From: "choice_b", To: "death"},
			{From: "revelation", To: "success"},
			{From: "revelation", To: "death"},
		},
	}
}
