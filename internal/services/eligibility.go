package services

import (
	"context"
	"errors"
	"fmt"
	"github.com/14kear/online_voting/voting-engine/internal/entity"
	"github.com/14kear/online_voting/voting-engine/internal/repo"
	"github.com/google/uuid"
)

// Reasons reported by VoterStatus when a user cannot vote.
const (
	ReasonPollClosed   = "Poll is closed"
	ReasonNotEligible  = "User is not eligible to vote in poll"
	ReasonAlreadyVoted = "User has already voted"
)

type VoterStatus struct {
	CanVote bool   `json:"can_vote"`
	Reason  string `json:"reason,omitempty"`
}

// ResolveVoter returns the voter record of userID in poll. Fixed pools only
// know voters created with the poll. Dynamic pools materialize a voter the
// first time a user matching the poll's filter shows up; once stored, a voter
// is never re-checked against the filter.
func (v *OnlineVoting) ResolveVoter(ctx context.Context, poll entity.Poll, userID string) (entity.Voter, error) {
	const op = "OnlineVoting.ResolveVoter"

	voter, err := v.voterStorage.GetVoter(ctx, poll.ID, userID)
	if err == nil {
		return voter, nil
	}
	if !errors.Is(err, repo.ErrVoterNotFound) {
		return entity.Voter{}, fmt.Errorf("%s: %w", op, err)
	}

	if !poll.DynamicVoters {
		return entity.Voter{}, fmt.Errorf("%s: %w", op, ErrNotEligible)
	}

	if _, err := v.userProvider.FindUser(ctx, userID, poll.VoterFilter); err != nil {
		if errors.Is(err, repo.ErrUserNotFound) {
			return entity.Voter{}, fmt.Errorf("%s: %w", op, ErrNotEligible)
		}
		return entity.Voter{}, fmt.Errorf("%s: query user: %w", op, err)
	}

	voter = entity.Voter{
		ID:     uuid.NewString(),
		PollID: poll.ID,
		UserID: userID,
	}
	if err := v.voterStorage.SaveVoter(ctx, voter); err != nil {
		if !errors.Is(err, repo.ErrVoterExists) {
			return entity.Voter{}, fmt.Errorf("%s: %w", op, err)
		}
		// Lost a materialization race; the stored row wins.
		voter, err = v.voterStorage.GetVoter(ctx, poll.ID, userID)
		if err != nil {
			return entity.Voter{}, fmt.Errorf("%s: %w", op, err)
		}
	}

	return voter, nil
}

// VoterStatus reports whether userID could cast a vote in the poll right now.
// It never materializes voters.
func (v *OnlineVoting) VoterStatus(ctx context.Context, pollID, userID string) (VoterStatus, error) {
	const op = "OnlineVoting.VoterStatus"

	poll, err := v.loadPoll(ctx, pollID)
	if err != nil {
		return VoterStatus{}, fmt.Errorf("%s: %w", op, err)
	}

	if !poll.AcceptsVotes(v.now()) {
		return VoterStatus{Reason: ReasonPollClosed}, nil
	}

	voter, err := v.voterStorage.GetVoter(ctx, poll.ID, userID)
	switch {
	case err == nil:
		if voter.Voted {
			return VoterStatus{Reason: ReasonAlreadyVoted}, nil
		}
		return VoterStatus{CanVote: true}, nil
	case !errors.Is(err, repo.ErrVoterNotFound):
		return VoterStatus{}, fmt.Errorf("%s: %w", op, err)
	}

	if !poll.DynamicVoters {
		return VoterStatus{Reason: ReasonNotEligible}, nil
	}

	if _, err := v.userProvider.FindUser(ctx, userID, poll.VoterFilter); err != nil {
		if errors.Is(err, repo.ErrUserNotFound) {
			return VoterStatus{Reason: ReasonNotEligible}, nil
		}
		return VoterStatus{}, fmt.Errorf("%s: %w", op, err)
	}
	return VoterStatus{CanVote: true}, nil
}
