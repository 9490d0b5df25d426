package entity

import "time"

type ResultsType string

const (
	ResultsTypeStar          ResultsType = "star"
	ResultsTypeCount         ResultsType = "count"
	ResultsTypeInstantRunoff ResultsType = "instant-runoff"
)

// Keys of CountResults.Counts for approval polls.
const (
	ApprovalYes = "approve"
	ApprovalNo  = "reject"
)

type PollResults struct {
	Public bool         `json:"public"`
	Data   *ResultsData `json:"data,omitempty"`
}

// ResultsData holds exactly one of Star, Counts or Runoff, selected by Type.
type ResultsData struct {
	Type        ResultsType    `json:"results_type"`
	ComputedAt  time.Time      `json:"computed_at"`
	TotalVoters int            `json:"total_voters"`
	TotalVoted  int            `json:"total_voted"`
	Star        *StarResults   `json:"star,omitempty"`
	Counts      *CountResults  `json:"counts,omitempty"`
	Runoff      *RunoffResults `json:"runoff,omitempty"`
}

type Matchup struct {
	Win  int `json:"win"`
	Lose int `json:"lose"`
	Tie  int `json:"tie"`
}

type StarResults struct {
	TotalScores      map[string]int                `json:"total_scores"`
	HighlightedRaces [][2]string                   `json:"highlighted_races"`
	PreferenceMatrix map[string]map[string]Matchup `json:"preference_matrix"`
}

type CountResults struct {
	Counts     map[string]int `json:"counts"`
	Abstained  int            `json:"abstained"`
	Thresholds Thresholds     `json:"thresholds"`
}

type RunoffRound struct {
	Counts     map[string]int `json:"counts"`
	Exhausted  int            `json:"exhausted"`
	Eliminated *string        `json:"eliminated,omitempty"`
}

type RunoffResults struct {
	Rounds []RunoffRound `json:"rounds"`
	Winner *string       `json:"winner,omitempty"`
}
