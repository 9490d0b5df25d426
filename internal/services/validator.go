package services

import (
	"github.com/14kear/online_voting/voting-engine/internal/entity"
)

// ValidateBallot checks a ballot against the poll it is cast in. It has no
// side effects. Every failure wraps ErrValidation.
func ValidateBallot(poll entity.Poll, payload entity.BallotPayload) error {
	if payload == nil {
		return invalid("empty ballot")
	}
	if payload.BallotType() != poll.BallotType {
		return invalid("ballot type %q does not match poll type %q", payload.BallotType(), poll.BallotType)
	}

	switch b := payload.(type) {
	case entity.InstantRunoffBallot:
		return validateRankings(poll, b.Rankings)
	case entity.StarBallot:
		return validateScores(poll, b.Scores)
	case entity.ApprovalBallot:
		return nil
	case entity.ChooseOneBallot:
		if !poll.HasChoice(b.Choice) {
			return invalid("unknown choice %q", b.Choice)
		}
		return nil
	default:
		return invalid("unsupported ballot %T", payload)
	}
}

func validateRankings(poll entity.Poll, rankings []string) error {
	if poll.Kind == entity.PollKindElection {
		// A two-way race is decided by a single preference.
		if len(poll.Choices) == 2 {
			if len(rankings) != 1 {
				return invalid("rank exactly one candidate in a two-candidate election")
			}
		} else if len(rankings) != len(poll.Choices) {
			return invalid("rank all %d candidates", len(poll.Choices))
		}
	}

	seen := make(map[string]struct{}, len(rankings))
	for _, id := range rankings {
		if !poll.HasChoice(id) {
			return invalid("unknown choice %q", id)
		}
		if _, dup := seen[id]; dup {
			return invalid("choice %q ranked more than once", id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

func validateScores(poll entity.Poll, scores []entity.ChoiceScore) error {
	if len(scores) != len(poll.Choices) {
		return invalid("score every choice exactly once")
	}

	seen := make(map[string]struct{}, len(scores))
	for _, s := range scores {
		if !poll.HasChoice(s.Choice) {
			return invalid("unknown choice %q", s.Choice)
		}
		if _, dup := seen[s.Choice]; dup {
			return invalid("choice %q scored more than once", s.Choice)
		}
		if s.Score < entity.MinStarScore || s.Score > entity.MaxStarScore {
			return invalid("score %d for %q out of range %d..%d", s.Score, s.Choice, entity.MinStarScore, entity.MaxStarScore)
		}
		seen[s.Choice] = struct{}{}
	}
	return nil
}
