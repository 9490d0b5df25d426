package services

import (
	"github.com/14kear/online_voting/voting-engine/internal/entity"
)

// FilterResults applies the read policy to a poll's cached results. Results
// that are not public are visible to managers only. Counts of a secret poll
// read as zero while the poll's outcome can still change.
func FilterResults(poll entity.Poll, viewer Viewer) (*entity.ResultsData, error) {
	if !poll.Results.Public && !viewer.Manager {
		return nil, ErrResultsNotPublic
	}
	if poll.Results.Data == nil {
		return nil, nil
	}

	data := *poll.Results.Data
	if poll.Secret && poll.CanChangeVote {
		zeroResults(&data)
	}
	return &data, nil
}

// FilterPoll returns the poll as the viewer may see it. Unlike FilterResults
// it never fails: hidden results are dropped from the poll instead.
func FilterPoll(poll entity.Poll, viewer Viewer) entity.Poll {
	data, err := FilterResults(poll, viewer)
	if err != nil {
		data = nil
	}
	poll.Results.Data = data
	return poll
}

// FilterVoters returns the voters of a poll as the viewer may see them. The
// voter list of a secret poll is withheld from everyone but managers, and
// managers never see ballot links.
func FilterVoters(poll entity.Poll, voters []entity.Voter, viewer Viewer) []entity.Voter {
	if poll.Secret && !viewer.Manager {
		return []entity.Voter{}
	}

	out := make([]entity.Voter, len(voters))
	copy(out, voters)
	if !poll.Secret {
		return out
	}
	for i := range out {
		out[i].BallotID = nil
	}
	return out
}

// zeroResults replaces every per-choice figure in data with zero. Maps are
// rebuilt so the cached results are left untouched.
func zeroResults(data *entity.ResultsData) {
	if data.Star != nil {
		star := entity.StarResults{
			TotalScores:      make(map[string]int, len(data.Star.TotalScores)),
			HighlightedRaces: [][2]string{},
			PreferenceMatrix: make(map[string]map[string]entity.Matchup, len(data.Star.PreferenceMatrix)),
		}
		for c := range data.Star.TotalScores {
			star.TotalScores[c] = 0
		}
		for a, row := range data.Star.PreferenceMatrix {
			zeroRow := make(map[string]entity.Matchup, len(row))
			for b := range row {
				zeroRow[b] = entity.Matchup{}
			}
			star.PreferenceMatrix[a] = zeroRow
		}
		data.Star = &star
	}

	if data.Counts != nil {
		counts := entity.CountResults{
			Counts:     zeroCounts(data.Counts.Counts),
			Thresholds: data.Counts.Thresholds,
		}
		data.Counts = &counts
	}

	if data.Runoff != nil {
		runoff := entity.RunoffResults{Rounds: []entity.RunoffRound{}}
		if len(data.Runoff.Rounds) > 0 {
			runoff.Rounds = append(runoff.Rounds, entity.RunoffRound{
				Counts: zeroCounts(data.Runoff.Rounds[0].Counts),
			})
		}
		data.Runoff = &runoff
	}
}

func zeroCounts(counts map[string]int) map[string]int {
	out := make(map[string]int, len(counts))
	for k := range counts {
		out[k] = 0
	}
	return out
}
