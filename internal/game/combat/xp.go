package combat

// XP grant bounds.
const (
	minBaseXP          = 50
	maxBaseXP          = 150
	minVictoryXP       = 10
	minDefeatXP        = 10
	minParticipationXP = 8
)

// BaseXP is clamp(80 + 5*(wild - player), 50, 150).
func BaseXP(wildLevel, playerLevel int) int {
	return min(maxBaseXP, max(minBaseXP, 80+5*(wildLevel-playerLevel)))
}

// VictoryXP is floor(1.5*base), at least 10.
func VictoryXP(base int) int { return max(minVictoryXP, base*3/2) }

// DefeatXP is floor(0.3*base), at least 10.
func DefeatXP(base int) int { return max(minDefeatXP, base*3/10) }

// ParticipationXP is floor(0.8*base), at least 8.
func ParticipationXP(base int) int { return max(minParticipationXP, base*8/10) }
