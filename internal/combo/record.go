// Package combo models one detected punish event as captured upstream and
// provides total accessors over possibly partial records. Capture payloads
// evolve schema over time, so every lookup tolerates missing or mistyped
// fields and reports absence instead of panicking.
package combo

// Record is one combo occurrence from the event log. The timestamp is the
// natural key correlating the combo to its replay file and video metadata.
// Records are read-only to this pipeline.
type Record struct {
	Timestamp string `json:"timestamp"`
	Trigger   string `json:"trigger,omitempty"`
	Source    string `json:"source,omitempty"`
	Phase     string `json:"phase,omitempty"`
	Event     *Event `json:"event,omitempty"`
}

type Event struct {
	Combo    *Detail   `json:"combo,omitempty"`
	Settings *Settings `json:"settings,omitempty"`
}

// Detail carries the combo body. Percent fields and the defender index are
// pointers: older capture versions omit them.
type Detail struct {
	StartPercent   *float64 `json:"startPercent,omitempty"`
	CurrentPercent *float64 `json:"currentPercent,omitempty"`
	EndPercent     *float64 `json:"endPercent,omitempty"`
	PlayerIndex    *int     `json:"playerIndex,omitempty"`
	Moves          []Move   `json:"moves,omitempty"`
	DidKill        bool     `json:"didKill,omitempty"`
}

type Move struct {
	PlayerIndex *int `json:"playerIndex,omitempty"`
	MoveID      *int `json:"moveId,omitempty"`
}

type Settings struct {
	StageID *int     `json:"stageId,omitempty"`
	Players []Player `json:"players,omitempty"`
}

// Player entries are unique by PlayerIndex within a record.
type Player struct {
	PlayerIndex *int   `json:"playerIndex,omitempty"`
	CharacterID *int   `json:"characterId,omitempty"`
	Port        *int   `json:"port,omitempty"`
	Nametag     string `json:"nametag,omitempty"`
}

func (r *Record) detail() *Detail {
	if r == nil || r.Event == nil {
		return nil
	}
	return r.Event.Combo
}

func (r *Record) settings() *Settings {
	if r == nil || r.Event == nil {
		return nil
	}
	return r.Event.Settings
}

// DefenderIndex is the playerIndex recorded on the combo body.
func (r *Record) DefenderIndex() (int, bool) {
	d := r.detail()
	if d == nil || d.PlayerIndex == nil {
		return 0, false
	}
	return *d.PlayerIndex, true
}

// AttackerIndex is the playerIndex of the first move in the sequence. An
// empty move list means the attacker cannot be identified.
func (r *Record) AttackerIndex() (int, bool) {
	d := r.detail()
	if d == nil || len(d.Moves) == 0 || d.Moves[0].PlayerIndex == nil {
		return 0, false
	}
	return *d.Moves[0].PlayerIndex, true
}

// PlayerByIndex scans the settings players for a matching playerIndex.
func (r *Record) PlayerByIndex(index int) (Player, bool) {
	s := r.settings()
	if s == nil {
		return Player{}, false
	}
	for _, p := range s.Players {
		if p.PlayerIndex != nil && *p.PlayerIndex == index {
			return p, true
		}
	}
	return Player{}, false
}

func (r *Record) Defender() (Player, bool) {
	idx, ok := r.DefenderIndex()
	if !ok {
		return Player{}, false
	}
	return r.PlayerByIndex(idx)
}

func (r *Record) Attacker() (Player, bool) {
	idx, ok := r.AttackerIndex()
	if !ok {
		return Player{}, false
	}
	return r.PlayerByIndex(idx)
}

func (r *Record) StageID() (int, bool) {
	s := r.settings()
	if s == nil || s.StageID == nil {
		return 0, false
	}
	return *s.StageID, true
}

func (r *Record) Moves() []Move {
	d := r.detail()
	if d == nil {
		return nil
	}
	return d.Moves
}

func (r *Record) DidKill() bool {
	d := r.detail()
	return d != nil && d.DidKill
}

// Damage is the percent delta dealt by the combo: (endPercent, falling back
// to currentPercent) minus startPercent. Absent percents count as zero.
func (r *Record) Damage() float64 {
	d := r.detail()
	if d == nil {
		return 0
	}
	var start, end float64
	if d.StartPercent != nil {
		start = *d.StartPercent
	}
	switch {
	case d.EndPercent != nil:
		end = *d.EndPercent
	case d.CurrentPercent != nil:
		end = *d.CurrentPercent
	}
	return end - start
}

// DisplayName is the player's nametag, or "Player <port>" when the tag is
// empty. Without a port the player index (1-based) stands in.
func (p Player) DisplayName() string {
	if p.Nametag != "" {
		return p.Nametag
	}
	if p.Port != nil {
		return playerLabel(*p.Port)
	}
	if p.PlayerIndex != nil {
		return playerLabel(*p.PlayerIndex + 1)
	}
	return "Player"
}
