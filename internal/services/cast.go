package services

import (
	"context"
	"errors"
	"fmt"
	"github.com/14kear/online_voting/voting-engine/internal/entity"
	"github.com/14kear/online_voting/voting-engine/internal/repo"
	"github.com/14kear/sso-prettyslog/slogpretty/errors"
	"github.com/google/uuid"
	"log/slog"
)

// CastVote records one vote of userID in the poll. A user votes at most once
// per poll no matter how many casts race. Checks that need no shared state
// run before the poll lock is taken; once the lock is held the cast runs to
// completion even if ctx is cancelled.
func (v *OnlineVoting) CastVote(ctx context.Context, pollID, userID string, payload entity.BallotPayload) error {
	const op = "OnlineVoting.CastVote"

	log := v.log.With(
		slog.String("op", op),
		slog.String("poll_id", pollID),
		slog.String("user_id", userID),
	)

	poll, err := v.loadPoll(ctx, pollID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if !poll.AcceptsVotes(v.now()) {
		v.metrics.VoteRejected("closed")
		return fmt.Errorf("%s: %w", op, ErrPollClosed)
	}

	if err := ValidateBallot(poll, payload); err != nil {
		v.metrics.VoteRejected("invalid")
		return fmt.Errorf("%s: %w", op, err)
	}

	unlock, err := v.lockPoll(ctx, poll.ID)
	if err != nil {
		v.metrics.VoteRejected("lock_timeout")
		log.Warn("poll lock not acquired", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	err = v.castLocked(context.WithoutCancel(ctx), log, poll.ID, userID, payload)
	unlock()

	if err != nil {
		switch {
		case errors.Is(err, ErrAlreadyVoted):
			v.metrics.VoteRejected("already_voted")
		case errors.Is(err, ErrNotEligible):
			v.metrics.VoteRejected("not_eligible")
		case errors.Is(err, ErrPollClosed):
			v.metrics.VoteRejected("closed")
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	v.metrics.VoteCast(string(poll.BallotType))
	log.Info("vote cast")

	v.scheduleRefresh(poll.ID)
	return nil
}

// castLocked must be called with the poll lock held.
func (v *OnlineVoting) castLocked(ctx context.Context, log *slog.Logger, pollID, userID string, payload entity.BallotPayload) error {
	// The poll may have been closed while we waited for the lock.
	poll, err := v.loadPoll(ctx, pollID)
	if err != nil {
		return err
	}
	if !poll.AcceptsVotes(v.now()) {
		return ErrPollClosed
	}

	voter, err := v.ResolveVoter(ctx, poll, userID)
	if err != nil {
		return err
	}
	if voter.Voted {
		return ErrAlreadyVoted
	}

	ballot := entity.Ballot{
		ID:      uuid.NewString(),
		PollID:  poll.ID,
		Payload: payload,
		CastAt:  v.now(),
	}
	if err := v.ballotStorage.SaveBallot(ctx, ballot); err != nil {
		return fmt.Errorf("save ballot: %w", err)
	}

	var link *string
	if !poll.Secret {
		link = &ballot.ID
	}

	if err := v.voterStorage.MarkVoted(ctx, voter.ID, link); err != nil {
		if delErr := v.ballotStorage.DeleteBallot(ctx, ballot.ID); delErr != nil {
			log.Error("orphan ballot left behind",
				slog.String("ballot_id", ballot.ID),
				sl.Err(delErr),
			)
		}
		if errors.Is(err, repo.ErrVoterAlreadyVoted) {
			return ErrAlreadyVoted
		}
		return fmt.Errorf("mark voted: %w", err)
	}

	return nil
}
