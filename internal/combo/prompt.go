package combo

import (
	"fmt"
	"math"
	"strings"
)

// FallbackPrompt is used when a record is too sparse to describe.
const FallbackPrompt = "Hype Melee combo!"

// BuildPrompt renders a combo as a descriptive sentence for the title
// generator. It is total: any record, including one with no moves or no
// players, yields a non-empty string.
func BuildPrompt(r *Record, tables Tables) string {
	if r == nil {
		return FallbackPrompt
	}

	attacker, attackerOK := r.Attacker()
	defender, defenderOK := r.Defender()
	if !attackerOK && !defenderOK {
		return FallbackPrompt
	}

	stageID, stageOK := r.StageID()
	stageName := tables.StageName(stageID, stageOK)
	attackerChar := tables.CharacterName(attacker, attackerOK)
	defenderChar := tables.CharacterName(defender, defenderOK)
	damage := int(math.Round(r.Damage()))

	var b strings.Builder
	fmt.Fprintf(&b, "On %s, %s's %s punished %s's %s.",
		stageName, attacker.DisplayName(), attackerChar,
		defender.DisplayName(), defenderChar)
	fmt.Fprintf(&b, " Damage dealt: ~%d%%.", damage)

	moves := r.Moves()
	if len(moves) > 0 {
		finisher := tables.MoveName(attackerChar, moves[len(moves)-1], "finish")
		if len(moves) > 1 {
			names := make([]string, 0, len(moves)-1)
			for _, m := range moves[:len(moves)-1] {
				names = append(names, tables.MoveName(attackerChar, m, "move"))
			}
			fmt.Fprintf(&b, " Sequence: %s -> %s.", strings.Join(names, ", "), finisher)
		} else {
			fmt.Fprintf(&b, " Finisher: %s.", finisher)
		}
	}

	if r.DidKill() {
		b.WriteString(" The combo took the stock.")
	}
	if tag := strings.TrimSpace(r.Trigger); tag != "" {
		fmt.Fprintf(&b, " Clip trigger: %s.", tag)
	}

	return b.String()
}
