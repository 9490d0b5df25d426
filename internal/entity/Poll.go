package entity

import "time"

type PollKind string

const (
	PollKindStandard PollKind = "standard"
	PollKindSimple   PollKind = "simple"
	PollKindElection PollKind = "election"
)

func (k PollKind) Valid() bool {
	switch k {
	case PollKindStandard, PollKindSimple, PollKindElection:
		return true
	}
	return false
}

// VoterFilter is the predicate a user must satisfy to be a voter of a poll.
// Nil fields do not constrain.
type VoterFilter struct {
	Inactive *bool   `json:"inactive,omitempty"`
	Party    *string `json:"party,omitempty"`
}

func DefaultVoterFilter() VoterFilter {
	inactive := false
	return VoterFilter{Inactive: &inactive}
}

func (f VoterFilter) Matches(user User) bool {
	if f.Inactive != nil && user.Inactive != *f.Inactive {
		return false
	}
	if f.Party != nil && (user.PartyID == nil || *user.PartyID != *f.Party) {
		return false
	}
	return true
}

type Thresholds struct {
	Pass int `json:"pass"`
	Fail int `json:"fail"`
}

type Poll struct {
	ID            string      `json:"id"`
	Title         string      `json:"title"`
	Kind          PollKind    `json:"kind"`
	Choices       []Choice    `json:"choices"`
	BallotType    BallotType  `json:"ballot_type"`
	VoterFilter   VoterFilter `json:"voter_filter"`
	DynamicVoters bool        `json:"dynamic_voters"`
	Secret        bool        `json:"secret"`
	Open          bool        `json:"open"`
	CanChangeVote bool        `json:"can_change_vote"`
	Closes        *time.Time  `json:"closes,omitempty"`
	Thresholds    Thresholds  `json:"thresholds"`
	Results       PollResults `json:"results"`
	CreatedAt     time.Time   `json:"timestamp"`
}

func (p Poll) ChoiceIDs() []string {
	ids := make([]string, len(p.Choices))
	for i, c := range p.Choices {
		ids[i] = c.ID
	}
	return ids
}

func (p Poll) HasChoice(id string) bool {
	for _, c := range p.Choices {
		if c.ID == id {
			return true
		}
	}
	return false
}

// AcceptsVotes reports whether the poll is open and its close deadline, if
// any, has not passed.
func (p Poll) AcceptsVotes(now time.Time) bool {
	if !p.Open {
		return false
	}
	return p.Closes == nil || now.Before(*p.Closes)
}

// IsMajority reports whether the poll is decided by majority thresholds and
// can therefore become decision-locked before it closes.
func (p Poll) IsMajority() bool {
	return p.BallotType == BallotTypeChooseOne
}
