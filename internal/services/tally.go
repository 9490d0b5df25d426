package services

import (
	"context"
	"fmt"
	"github.com/14kear/online_voting/voting-engine/internal/entity"
	"github.com/14kear/sso-prettyslog/slogpretty/errors"
	"log/slog"
	"sort"
	"time"
)

// Decisions announced when a majority poll reaches a threshold.
const (
	DecisionPassed  = "PASSED"
	DecisionFailed  = "FAILED"
	DecisionDecided = "DECIDED"
)

// Thresholds returns the pass and fail thresholds for a pool of n voters.
func Thresholds(n int) entity.Thresholds {
	if n <= 0 {
		return entity.Thresholds{}
	}
	if n%2 == 0 {
		return entity.Thresholds{Pass: n/2 + 1, Fail: n / 2}
	}
	half := (n + 1) / 2
	return entity.Thresholds{Pass: half, Fail: half}
}

// Tally computes results for the poll from its voters and ballots. Ballots
// of another type than the poll's are ignored.
func Tally(poll entity.Poll, voters []entity.Voter, ballots []entity.Ballot) entity.ResultsData {
	data := entity.ResultsData{TotalVoters: len(voters)}
	for _, vt := range voters {
		if vt.Voted {
			data.TotalVoted++
		}
	}

	choices := poll.ChoiceIDs()

	switch poll.BallotType {
	case entity.BallotTypeStar:
		star := make([]entity.StarBallot, 0, len(ballots))
		for _, b := range ballots {
			if p, ok := b.Payload.(entity.StarBallot); ok {
				star = append(star, p)
			}
		}
		res := TallyStar(choices, star)
		data.Type = entity.ResultsTypeStar
		data.Star = &res
	case entity.BallotTypeChooseOne:
		picks := make([]entity.ChooseOneBallot, 0, len(ballots))
		for _, b := range ballots {
			if p, ok := b.Payload.(entity.ChooseOneBallot); ok {
				picks = append(picks, p)
			}
		}
		res := TallyChooseOne(choices, picks, len(voters))
		data.Type = entity.ResultsTypeCount
		data.Counts = &res
	case entity.BallotTypeApproval:
		approvals := make([]entity.ApprovalBallot, 0, len(ballots))
		for _, b := range ballots {
			if p, ok := b.Payload.(entity.ApprovalBallot); ok {
				approvals = append(approvals, p)
			}
		}
		res := TallyApproval(approvals, len(voters))
		data.Type = entity.ResultsTypeCount
		data.Counts = &res
	case entity.BallotTypeInstantRunoff:
		ranked := make([]entity.InstantRunoffBallot, 0, len(ballots))
		for _, b := range ballots {
			if p, ok := b.Payload.(entity.InstantRunoffBallot); ok {
				ranked = append(ranked, p)
			}
		}
		res := TallyRunoff(choices, ranked)
		data.Type = entity.ResultsTypeInstantRunoff
		data.Runoff = &res
	}

	return data
}

// TallyStar sums scores per choice and counts, for every ordered pair of
// choices, on how many ballots the first scored above, below or equal to the
// second.
func TallyStar(choices []string, ballots []entity.StarBallot) entity.StarResults {
	totals := make(map[string]int, len(choices))
	matrix := make(map[string]map[string]entity.Matchup, len(choices))
	for _, a := range choices {
		totals[a] = 0
		matrix[a] = make(map[string]entity.Matchup, len(choices)-1)
		for _, b := range choices {
			if a != b {
				matrix[a][b] = entity.Matchup{}
			}
		}
	}

	scores := make(map[string]int, len(choices))
	for _, ballot := range ballots {
		clear(scores)
		for _, s := range ballot.Scores {
			if _, ok := totals[s.Choice]; ok {
				scores[s.Choice] = s.Score
			}
		}

		for _, a := range choices {
			sa := scores[a]
			totals[a] += sa
			for _, b := range choices {
				if a == b {
					continue
				}
				m := matrix[a][b]
				switch sb := scores[b]; {
				case sa > sb:
					m.Win++
				case sa < sb:
					m.Lose++
				default:
					m.Tie++
				}
				matrix[a][b] = m
			}
		}
	}

	return entity.StarResults{
		TotalScores:      totals,
		HighlightedRaces: topTwo(choices, totals),
		PreferenceMatrix: matrix,
	}
}

// topTwo returns the runoff pair of the two highest total scores. Ties keep
// the poll's choice order.
func topTwo(choices []string, totals map[string]int) [][2]string {
	if len(choices) < 2 {
		return [][2]string{}
	}
	ranked := append([]string(nil), choices...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return totals[ranked[i]] > totals[ranked[j]]
	})
	return [][2]string{{ranked[0], ranked[1]}}
}

func TallyChooseOne(choices []string, ballots []entity.ChooseOneBallot, totalVoters int) entity.CountResults {
	counts := make(map[string]int, len(choices))
	for _, c := range choices {
		counts[c] = 0
	}
	for _, b := range ballots {
		if _, ok := counts[b.Choice]; ok {
			counts[b.Choice]++
		}
	}
	return entity.CountResults{
		Counts:     counts,
		Thresholds: Thresholds(totalVoters),
	}
}

// TallyApproval counts approvals and rejections. Ballots without a decision
// are abstentions.
func TallyApproval(ballots []entity.ApprovalBallot, totalVoters int) entity.CountResults {
	res := entity.CountResults{
		Counts:     map[string]int{entity.ApprovalYes: 0, entity.ApprovalNo: 0},
		Thresholds: Thresholds(totalVoters),
	}
	for _, b := range ballots {
		switch {
		case b.Approve == nil:
			res.Abstained++
		case *b.Approve:
			res.Counts[entity.ApprovalYes]++
		default:
			res.Counts[entity.ApprovalNo]++
		}
	}
	return res
}

// TallyRunoff runs instant-runoff rounds. Each round counts every ballot for
// its highest ranked remaining choice. A choice holding more than half of the
// continuing ballots wins; otherwise the weakest choice is eliminated, the
// later one in poll order on ties.
func TallyRunoff(choices []string, ballots []entity.InstantRunoffBallot) entity.RunoffResults {
	res := entity.RunoffResults{Rounds: []entity.RunoffRound{}}
	if len(choices) == 0 {
		return res
	}

	active := make(map[string]bool, len(choices))
	for _, c := range choices {
		active[c] = true
	}

	for {
		round := entity.RunoffRound{Counts: make(map[string]int, len(active))}
		for _, c := range choices {
			if active[c] {
				round.Counts[c] = 0
			}
		}

		continuing := 0
		for _, b := range ballots {
			top := ""
			for _, c := range b.Rankings {
				if active[c] {
					top = c
					break
				}
			}
			if top == "" {
				round.Exhausted++
				continue
			}
			round.Counts[top]++
			continuing++
		}

		if continuing == 0 {
			res.Rounds = append(res.Rounds, round)
			return res
		}

		leader, weakest := "", ""
		for _, c := range choices {
			if !active[c] {
				continue
			}
			if leader == "" || round.Counts[c] > round.Counts[leader] {
				leader = c
			}
			if weakest == "" || round.Counts[c] <= round.Counts[weakest] {
				weakest = c
			}
		}

		if round.Counts[leader]*2 > continuing || len(round.Counts) == 1 {
			res.Rounds = append(res.Rounds, round)
			res.Winner = &leader
			return res
		}

		eliminated := weakest
		round.Eliminated = &eliminated
		res.Rounds = append(res.Rounds, round)
		delete(active, weakest)
	}
}

// decide reports the decision a majority poll has reached, if any, and the
// choice that reached its threshold.
func decide(poll entity.Poll, counts *entity.CountResults) (string, entity.Choice, bool) {
	if counts == nil || len(poll.Choices) < 2 {
		return "", entity.Choice{}, false
	}
	th := counts.Thresholds
	if th.Pass == 0 {
		return "", entity.Choice{}, false
	}

	if len(poll.Choices) == 2 {
		if counts.Counts[poll.Choices[0].ID] >= th.Pass {
			return DecisionPassed, poll.Choices[0], true
		}
		if counts.Counts[poll.Choices[1].ID] >= th.Fail {
			return DecisionFailed, poll.Choices[1], true
		}
		return "", entity.Choice{}, false
	}

	for _, c := range poll.Choices {
		if counts.Counts[c.ID] >= th.Pass {
			return DecisionDecided, c, true
		}
	}
	return "", entity.Choice{}, false
}

// RefreshResults recomputes and stores the poll's results. Refreshes of one
// poll are serialized from the first read to the save, so a slower refresh
// never overwrites results computed from newer state. A fixed-pool majority
// poll that is still mutable becomes decision-locked once a threshold is
// reached, and the decision is announced once.
func (v *OnlineVoting) RefreshResults(ctx context.Context, pollID string) (err error) {
	const op = "OnlineVoting.RefreshResults"

	start := time.Now()
	defer func() { v.metrics.TallyRefreshed(start, err) }()

	log := v.log.With(slog.String("op", op), slog.String("poll_id", pollID))

	unlock, err := v.refreshLocks.Lock(ctx, pollID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer unlock()

	poll, err := v.loadPoll(ctx, pollID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	voters, err := v.voterStorage.GetVotersByPollID(ctx, pollID)
	if err != nil {
		return fmt.Errorf("%s: voters: %w", op, err)
	}

	ballots, err := v.ballotStorage.GetBallotsByPollID(ctx, pollID)
	if err != nil {
		return fmt.Errorf("%s: ballots: %w", op, err)
	}

	data := Tally(poll, voters, ballots)
	data.ComputedAt = v.now()

	if err := v.pollStorage.SaveResults(ctx, pollID, data); err != nil {
		return fmt.Errorf("%s: save: %w", op, err)
	}
	unlock()

	log.Debug("results refreshed",
		slog.Int("ballots", len(ballots)),
		slog.Int("voted", data.TotalVoted),
	)

	if !poll.IsMajority() || poll.DynamicVoters || !poll.CanChangeVote {
		return nil
	}

	decision, choice, ok := decide(poll, data.Counts)
	if !ok {
		return nil
	}

	locked, err := v.pollStorage.LockDecision(ctx, pollID)
	if err != nil {
		return fmt.Errorf("%s: lock decision: %w", op, err)
	}
	if !locked {
		return nil
	}

	v.metrics.DecisionLocked()
	log.Info("poll decided", slog.String("decision", decision), slog.String("choice_id", choice.ID))

	if v.notifier != nil {
		if err := v.notifier.Announce(ctx, v.announcement(decision, poll, choice)); err != nil {
			log.Warn("failed to announce decision", sl.Err(err))
		}
	}
	return nil
}

func (v *OnlineVoting) announcement(decision string, poll entity.Poll, choice entity.Choice) string {
	title := poll.Title
	if decision == DecisionDecided {
		title += " (" + choice.Label() + ")"
	}
	return fmt.Sprintf("%s: %s\n%s/polls/%s", decision, title, v.cfg.WebappURL, poll.ID)
}
