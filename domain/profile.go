package domain

// Profile holds the durable per-user score. Rank is always derived from
// points, never stored, so the two can never drift apart.
type Profile struct {
	UserID string `json:"user_id"`
	Points int    `json:"points"`
}

// NewProfile returns a profile at the default starting score.
func NewProfile(userID string) *Profile {
	return &Profile{UserID: userID, Points: StartingPoints}
}

func (p *Profile) Rank() int {
	if p == nil {
		return 1
	}
	return RankOf(p.Points)
}
