package entity

// Voter is the per (poll, user) eligibility record. BallotID stays nil for
// secret polls even after the user voted.
type Voter struct {
	ID       string  `json:"id"`
	PollID   string  `json:"poll"`
	UserID   string  `json:"user"`
	BallotID *string `json:"ballot"`
	Voted    bool    `json:"voted"`
}
