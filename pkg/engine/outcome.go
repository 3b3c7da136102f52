package engine

// Ending types produced by the default classifier.
const (
	EndingDeath     = "death"
	EndingSurvived  = "survived"
	EndingExplosion = "explosion"
)

// DefaultProtagonist is the character whose fate follows the death flag.
const DefaultProtagonist = "PROTAGONIST"

// OutcomeClassifier derives survivors, deaths, and the ending from a final state.
type OutcomeClassifier interface {
	Classify(state *WorldState) Outcome
}

// Character fates used by outcome rules.
const (
	FateSurvives = "survives"
	FateDies     = "dies"
)

// OutcomeRule marks a character as surviving or dying when a world fact is set.
type OutcomeRule struct {
	Fact      string `json:"fact" yaml:"fact" validate:"required"`
	Character string `json:"character" yaml:"character" validate:"required"`
	Fate      string `json:"fate" yaml:"fate" validate:"required,oneof=survives dies"`
}

// EndingRule overrides the ending type when a world fact is set.
type EndingRule struct {
	Fact   string `json:"fact" yaml:"fact" validate:"required"`
	Ending string `json:"ending" yaml:"ending" validate:"required"`
}

// RuleClassifier classifies outcomes from fact-driven rules. The protagonist
// survives unless the state is dead. Ending rules are checked in order and
// the first match wins.
type RuleClassifier struct {
	Protagonist string
	Rules       []OutcomeRule
	Endings     []EndingRule
}

// DefaultClassifier returns the stock rule set for the sister/villain/bomb day.
func DefaultClassifier() *RuleClassifier {
	return &RuleClassifier{
		Protagonist: DefaultProtagonist,
		Rules: []OutcomeRule{
			{Fact: "SISTER_ALIVE", Character: "SISTER", Fate: FateSurvives},
			{Fact: "SISTER_DEAD", Character: "SISTER", Fate: FateDies},
			{Fact: "VILLAIN_CAUGHT", Character: "VILLAIN", Fate: FateDies},
			{Fact: "VILLAIN_ESCAPED", Character: "VILLAIN", Fate: FateSurvives},
		},
		Endings: []EndingRule{
			{Fact: "BOMB_EXPLODED", Ending: EndingExplosion},
		},
	}
}

// Classify implements OutcomeClassifier.
func (c *RuleClassifier) Classify(state *WorldState) Outcome {
	survivors, deaths := NewSet(), NewSet()

	protagonist := c.Protagonist
	if protagonist == "" {
		protagonist = DefaultProtagonist
	}
	if state.IsDead {
		deaths.Add(protagonist)
	} else {
		survivors.Add(protagonist)
	}

	for _, r := range c.Rules {
		if !state.WorldFacts.Has(r.Fact) {
			continue
		}
		if r.Fate == FateDies {
			deaths.Add(r.Character)
		} else {
			survivors.Add(r.Character)
		}
	}

	ending := EndingSurvived
	if state.IsDead {
		ending = EndingDeath
	}
	for _, e := range c.Endings {
		if state.WorldFacts.Has(e.Fact) {
			ending = e.Ending
			break
		}
	}

	return Outcome{
		Survivors:    survivors.Sorted(),
		Deaths:       deaths.Sorted(),
		StateChanges: state.WorldFacts.Sorted(),
		EndingType:   ending,
	}
}
