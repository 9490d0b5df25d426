package entity

type Candidate struct {
	UserID string `json:"user"`
	Name   string `json:"name"`
}

type Campaign struct {
	PartyID *string `json:"party"`
	Name    string  `json:"name"`
}

// Choice is either a text choice (Text set) or a candidate ticket
// (Candidate set, optional running mate and campaign).
type Choice struct {
	ID          string     `json:"id"`
	Text        string     `json:"text,omitempty"`
	Candidate   *Candidate `json:"candidate,omitempty"`
	RunningMate *Candidate `json:"running_mate,omitempty"`
	Campaign    *Campaign  `json:"campaign,omitempty"`
}

func (c Choice) IsCandidate() bool {
	return c.Candidate != nil
}

func (c Choice) Label() string {
	if c.Candidate == nil {
		return c.Text
	}
	if c.RunningMate != nil {
		return c.Candidate.Name + " / " + c.RunningMate.Name
	}
	return c.Candidate.Name
}
