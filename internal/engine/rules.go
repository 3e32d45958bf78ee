package engine

import "fmt"

// HouseRules are the per-room knobs chosen at creation time.
type HouseRules struct {
	Expansion         bool `json:"expansion"`         // add swap, shuffle and custom wilds to the deck
	StartingHandSize  int  `json:"startingHandSize"`  // cards dealt to each player per round
	MaxPlayers        int  `json:"maxPlayers"`        // seats available before the room reports full
	TargetScore       int  `json:"targetScore"`       // cumulative score that wins the match
	Wild4ChallengeSec int  `json:"wild4ChallengeSec"` // seconds before an unanswered challenge window auto-declines; 0 disables
}

const (
	DefaultHandSize    = 7
	DefaultMaxPlayers  = 12
	DefaultTargetScore = 500
	DefaultChallengeS  = 10
)

// DefaultHouseRules returns the standard game.
func DefaultHouseRules() HouseRules {
	return HouseRules{
		StartingHandSize:  DefaultHandSize,
		MaxPlayers:        DefaultMaxPlayers,
		TargetScore:       DefaultTargetScore,
		Wild4ChallengeSec: DefaultChallengeS,
	}
}

// Update applies the keys present in newRules, leaving the rest untouched.
// Values come from decoded JSON, so numbers may arrive as float64.
func (rules *HouseRules) Update(newRules map[string]interface{}) error {
	assignBool := func(field *bool, key string) error {
		val, exists := newRules[key]
		if !exists || val == nil {
			return nil
		}
		b, ok := val.(bool)
		if !ok {
			return fmt.Errorf("invalid type for %s", key)
		}
		*field = b
		return nil
	}

	assignInt := func(field *int, key string, minVal, maxVal int) error {
		val, exists := newRules[key]
		if !exists || val == nil {
			return nil
		}
		var n int
		switch v := val.(type) {
		case float64:
			n = int(v)
		case int:
			n = v
		default:
			return fmt.Errorf("invalid type for %s", key)
		}
		if n < minVal || n > maxVal {
			return fmt.Errorf("%s must be between %d and %d", key, minVal, maxVal)
		}
		*field = n
		return nil
	}

	if err := assignBool(&rules.Expansion, "expansion"); err != nil {
		return err
	}
	if err := assignInt(&rules.StartingHandSize, "startingHandSize", 1, 15); err != nil {
		return err
	}
	if err := assignInt(&rules.MaxPlayers, "maxPlayers", 2, DefaultMaxPlayers); err != nil {
		return err
	}
	if err := assignInt(&rules.TargetScore, "targetScore", 1, 10000); err != nil {
		return err
	}
	if err := assignInt(&rules.Wild4ChallengeSec, "wild4ChallengeSec", 0, 120); err != nil {
		return err
	}
	return nil
}

// ParseRules returns current with newRules applied. current is not modified.
func ParseRules(newRules map[string]interface{}, current HouseRules) (HouseRules, error) {
	rules := current
	err := rules.Update(newRules)
	return rules, err
}
