package memory

import (
	"context"
	"github.com/14kear/online_voting/voting-engine/internal/entity"
	"github.com/14kear/online_voting/voting-engine/internal/repo"
	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestStore_PollIsCopied(t *testing.T) {
	s := NewStore(nil)
	ctx := context.Background()

	poll := entity.Poll{ID: "p1", Choices: []entity.Choice{{ID: "c1", Text: "yes"}}, CanChangeVote: true}
	require.NoError(t, s.SavePoll(ctx, poll, nil))

	poll.Choices[0].Text = "changed"
	got, err := s.GetPollByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "yes", got.Choices[0].Text)

	got.Choices[0].Text = "changed again"
	again, err := s.GetPollByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "yes", again.Choices[0].Text)
}

func TestStore_LockDecisionOnce(t *testing.T) {
	s := NewStore(nil)
	ctx := context.Background()
	require.NoError(t, s.SavePoll(ctx, entity.Poll{ID: "p1", CanChangeVote: true}, nil))

	var flips atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.LockDecision(ctx, "p1")
			assert.NoError(t, err)
			if ok {
				flips.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), flips.Load())

	_, err := s.LockDecision(ctx, "missing")
	assert.ErrorIs(t, err, repo.ErrPollNotFound)
}

func TestStore_Voters(t *testing.T) {
	s := NewStore(nil)
	ctx := context.Background()
	userID := gofakeit.UUID()

	require.NoError(t, s.SaveVoter(ctx, entity.Voter{ID: "v1", PollID: "p1", UserID: userID}))
	assert.ErrorIs(t, s.SaveVoter(ctx, entity.Voter{ID: "v2", PollID: "p1", UserID: userID}), repo.ErrVoterExists)

	voters, err := s.GetVotersByPollID(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, voters, 1)

	ballotID := "b1"
	require.NoError(t, s.MarkVoted(ctx, "v1", &ballotID))
	assert.ErrorIs(t, s.MarkVoted(ctx, "v1", nil), repo.ErrVoterAlreadyVoted)
	assert.ErrorIs(t, s.MarkVoted(ctx, "nope", nil), repo.ErrVoterNotFound)

	v, err := s.GetVoter(ctx, "p1", userID)
	require.NoError(t, err)
	assert.True(t, v.Voted)
	require.NotNil(t, v.BallotID)
	assert.Equal(t, "b1", *v.BallotID)

	_, err = s.GetVoter(ctx, "p2", userID)
	assert.ErrorIs(t, err, repo.ErrVoterNotFound)
}

func TestStore_PollsClosingBefore(t *testing.T) {
	s := NewStore(nil)
	ctx := context.Background()
	now := time.Now()
	past, future := now.Add(-time.Minute), now.Add(time.Minute)

	require.NoError(t, s.SavePoll(ctx, entity.Poll{ID: "due", Open: true, Closes: &past}, nil))
	require.NoError(t, s.SavePoll(ctx, entity.Poll{ID: "later", Open: true, Closes: &future}, nil))
	require.NoError(t, s.SavePoll(ctx, entity.Poll{ID: "closed", Open: false, Closes: &past}, nil))
	require.NoError(t, s.SavePoll(ctx, entity.Poll{ID: "open-ended", Open: true}, nil))

	polls, err := s.GetPollsClosingBefore(ctx, now)
	require.NoError(t, err)
	require.Len(t, polls, 1)
	assert.Equal(t, "due", polls[0].ID)
}

func TestStore_Users(t *testing.T) {
	party := "green"
	users := []entity.User{
		{ID: "a", Name: gofakeit.Name(), PartyID: &party},
		{ID: "b", Name: gofakeit.Name(), Inactive: true},
		{ID: "c", Name: gofakeit.Name()},
	}
	s := NewStore(users)
	ctx := context.Background()

	active, err := s.QueryUsers(ctx, entity.DefaultVoterFilter())
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "a", active[0].ID)
	assert.Equal(t, "c", active[1].ID)

	_, err = s.FindUser(ctx, "b", entity.DefaultVoterFilter())
	assert.ErrorIs(t, err, repo.ErrUserNotFound)

	greens := entity.VoterFilter{Party: &party}
	_, err = s.FindUser(ctx, "c", greens)
	assert.ErrorIs(t, err, repo.ErrUserNotFound)
	u, err := s.FindUser(ctx, "a", greens)
	require.NoError(t, err)
	assert.Equal(t, "a", u.ID)
}

func TestStore_Ballots(t *testing.T) {
	s := NewStore(nil)
	ctx := context.Background()

	require.NoError(t, s.SaveBallot(ctx, entity.Ballot{ID: "b1", PollID: "p1", Payload: entity.ChooseOneBallot{Choice: "c"}}))
	require.NoError(t, s.SaveBallot(ctx, entity.Ballot{ID: "b2", PollID: "p2", Payload: entity.ChooseOneBallot{Choice: "c"}}))

	ballots, err := s.GetBallotsByPollID(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, ballots, 1)

	require.NoError(t, s.DeleteBallot(ctx, "b1"))
	assert.ErrorIs(t, s.DeleteBallot(ctx, "b1"), repo.ErrBallotNotFound)
}

func TestStore_Logs(t *testing.T) {
	s := NewStore(nil)
	ctx := context.Background()

	id, err := s.SaveLog(ctx, &entity.Log{UserID: "u", Action: "OnlineVoting.ClosePoll"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	logs, err := s.GetLogs(ctx)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, id, logs[0].ID)
	assert.False(t, logs[0].CreatedAt.IsZero())
}

func TestStore_SavePollWithPool(t *testing.T) {
	s := NewStore(nil)
	ctx := context.Background()
	first, second := gofakeit.UUID(), gofakeit.UUID()

	require.NoError(t, s.SavePoll(ctx, entity.Poll{ID: "p1", Open: true}, []entity.Voter{
		{ID: "v1", PollID: "p1", UserID: first},
		{ID: "v2", PollID: "p1", UserID: second},
	}))
	voters, err := s.GetVotersByPollID(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, voters, 2)

	err = s.SavePoll(ctx, entity.Poll{ID: "p2", Open: true}, []entity.Voter{
		{ID: "v3", PollID: "p2", UserID: first},
		{ID: "v4", PollID: "p2", UserID: first},
	})
	assert.ErrorIs(t, err, repo.ErrVoterExists)

	_, err = s.GetPollByID(ctx, "p2")
	assert.ErrorIs(t, err, repo.ErrPollNotFound)
	voters, err = s.GetVotersByPollID(ctx, "p2")
	require.NoError(t, err)
	assert.Empty(t, voters)
}
