package combo

import "fmt"

// Tables hold the id-to-name dictionaries used when rendering prompts.
// They are supplied by the caller so events can ship their own overrides.
type Tables struct {
	Stages     map[int]string
	Characters map[int]string
	// Moves is the global move-name table; CharacterMoves overrides it per
	// character display name (specials mostly).
	Moves          map[int]string
	CharacterMoves map[string]map[int]string
}

func (t Tables) StageName(id int, ok bool) string {
	if ok {
		if name, found := t.Stages[id]; found {
			return name
		}
	}
	return "Unknown Stage"
}

func (t Tables) CharacterName(p Player, ok bool) string {
	if ok && p.CharacterID != nil {
		if name, found := t.Characters[*p.CharacterID]; found {
			return name
		}
	}
	return "Unknown"
}

// MoveName resolves a move id through the per-character table first, then
// the global table, then the fallback literal.
func (t Tables) MoveName(character string, m Move, fallback string) string {
	if m.MoveID == nil {
		return fallback
	}
	if charMoves, found := t.CharacterMoves[character]; found {
		if name, found := charMoves[*m.MoveID]; found {
			return name
		}
	}
	if name, found := t.Moves[*m.MoveID]; found {
		return name
	}
	return fallback
}

func playerLabel(n int) string {
	return fmt.Sprintf("Player %d", n)
}

// DefaultTables covers the legal tournament stages, the full character
// roster, and the shared move ids used by the capture tooling.
func DefaultTables() Tables {
	return Tables{
		Stages: map[int]string{
			2:  "Fountain of Dreams",
			3:  "Pokemon Stadium",
			8:  "Yoshi's Story",
			28: "Dream Land",
			31: "Battlefield",
			32: "Final Destination",
		},
		Characters: map[int]string{
			0:  "Captain Falcon",
			1:  "Donkey Kong",
			2:  "Fox",
			3:  "Mr. Game & Watch",
			4:  "Kirby",
			5:  "Bowser",
			6:  "Link",
			7:  "Luigi",
			8:  "Mario",
			9:  "Marth",
			10: "Mewtwo",
			11: "Ness",
			12: "Peach",
			13: "Pikachu",
			14: "Ice Climbers",
			15: "Jigglypuff",
			16: "Samus",
			17: "Yoshi",
			18: "Zelda",
			19: "Sheik",
			20: "Falco",
			21: "Young Link",
			22: "Dr. Mario",
			23: "Roy",
			24: "Pichu",
			25: "Ganondorf",
		},
		Moves: map[int]string{
			2:  "jab",
			3:  "jab",
			4:  "jab",
			5:  "rapid jabs",
			6:  "dash attack",
			7:  "forward tilt",
			8:  "up tilt",
			9:  "down tilt",
			10: "forward smash",
			11: "up smash",
			12: "down smash",
			13: "neutral air",
			14: "forward air",
			15: "back air",
			16: "up air",
			17: "down air",
			18: "neutral special",
			19: "side special",
			20: "up special",
			21: "down special",
			50: "getup attack",
			52: "pummel",
			53: "forward throw",
			54: "back throw",
			55: "up throw",
			56: "down throw",
			61: "edge attack",
			62: "edge attack",
		},
		CharacterMoves: map[string]map[int]string{
			"Captain Falcon": {18: "Falcon Punch", 19: "Raptor Boost", 20: "Falcon Dive", 21: "Falcon Kick", 14: "the Knee"},
			"Fox":            {18: "Blaster", 19: "Illusion", 20: "Fire Fox", 21: "Shine"},
			"Falco":          {18: "Blaster", 19: "Phantasm", 20: "Fire Bird", 21: "Shine"},
			"Marth":          {18: "Shield Breaker", 19: "Dancing Blade", 20: "Dolphin Slash", 21: "Counter"},
			"Jigglypuff":     {18: "Rollout", 19: "Pound", 20: "Sing", 21: "Rest"},
			"Peach":          {18: "Toad", 19: "Peach Bomber", 20: "Parasol", 21: "Vegetable"},
			"Sheik":          {18: "Needle Storm", 19: "Chain", 20: "Vanish", 21: "Transform"},
			"Ganondorf":      {18: "Warlock Punch", 19: "Gerudo Dragon", 20: "Dark Dive", 21: "Wizard's Foot"},
		},
	}
}
