package services

import (
	"context"
	"errors"
	"github.com/14kear/online_voting/voting-engine/internal/entity"
	"github.com/14kear/online_voting/voting-engine/internal/repo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func yesNoPoll(t *testing.T, svc *OnlineVoting, secret bool) entity.Poll {
	return mustCreatePoll(t, svc, NewPoll{
		Kind:       entity.PollKindSimple,
		BallotType: entity.BallotTypeChooseOne,
		Choices:    textChoices("yes", "no"),
		Secret:     secret,
	})
}

func TestCastVote_LinksBallot(t *testing.T) {
	users := fakeUsers(3)
	svc, store := newTestVoting(t, users, nil, nil)
	poll := yesNoPoll(t, svc, false)

	err := svc.CastVote(context.Background(), poll.ID, users[0].ID, entity.ChooseOneBallot{Choice: poll.Choices[0].ID})
	require.NoError(t, err)

	voter, err := store.GetVoter(context.Background(), poll.ID, users[0].ID)
	require.NoError(t, err)
	assert.True(t, voter.Voted)
	require.NotNil(t, voter.BallotID)

	ballots := ballotsOf(t, store, poll.ID)
	require.Len(t, ballots, 1)
	assert.Equal(t, ballots[0].ID, *voter.BallotID)
}

func TestCastVote_SecretPollWithholdsLink(t *testing.T) {
	users := fakeUsers(2)
	svc, store := newTestVoting(t, users, nil, nil)
	poll := yesNoPoll(t, svc, true)

	err := svc.CastVote(context.Background(), poll.ID, users[0].ID, entity.ChooseOneBallot{Choice: poll.Choices[1].ID})
	require.NoError(t, err)

	voter, err := store.GetVoter(context.Background(), poll.ID, users[0].ID)
	require.NoError(t, err)
	assert.True(t, voter.Voted)
	assert.Nil(t, voter.BallotID)
	assert.Len(t, ballotsOf(t, store, poll.ID), 1)
}

func TestCastVote_ConcurrentCastsCountOnce(t *testing.T) {
	users := fakeUsers(1)
	svc, store := newTestVoting(t, users, nil, nil)
	poll := yesNoPoll(t, svc, false)

	const casts = 50
	var (
		wg       sync.WaitGroup
		ok       atomic.Int32
		rejected atomic.Int32
		start    = make(chan struct{})
	)

	for i := 0; i < casts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			err := svc.CastVote(context.Background(), poll.ID, users[0].ID, entity.ChooseOneBallot{Choice: poll.Choices[0].ID})
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, ErrAlreadyVoted):
				rejected.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), ok.Load())
	assert.Equal(t, int32(casts-1), rejected.Load())
	assert.Len(t, ballotsOf(t, store, poll.ID), 1)
}

func TestCastVote_DynamicPoolConcurrentFirstCasts(t *testing.T) {
	users := fakeUsers(1)
	svc, store := newTestVoting(t, users, nil, nil)
	poll := mustCreatePoll(t, svc, NewPoll{
		BallotType:    entity.BallotTypeApproval,
		Choices:       textChoices("proposal"),
		DynamicVoters: true,
	})

	yes := true
	var wg sync.WaitGroup
	var ok atomic.Int32
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := svc.CastVote(context.Background(), poll.ID, users[0].ID, entity.ApprovalBallot{Approve: &yes}); err == nil {
				ok.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), ok.Load())
	voters, err := store.GetVotersByPollID(context.Background(), poll.ID)
	require.NoError(t, err)
	assert.Len(t, voters, 1)
	assert.Len(t, ballotsOf(t, store, poll.ID), 1)
}

func TestCastVote_SecondVoteRejected(t *testing.T) {
	users := fakeUsers(2)
	svc, _ := newTestVoting(t, users, nil, nil)
	poll := yesNoPoll(t, svc, false)
	ballot := entity.ChooseOneBallot{Choice: poll.Choices[0].ID}

	require.NoError(t, svc.CastVote(context.Background(), poll.ID, users[0].ID, ballot))
	err := svc.CastVote(context.Background(), poll.ID, users[0].ID, ballot)
	assert.ErrorIs(t, err, ErrAlreadyVoted)
}

func TestCastVote_TypeMismatchLeavesNoState(t *testing.T) {
	users := fakeUsers(2)
	svc, store := newTestVoting(t, users, nil, nil)
	poll := mustCreatePoll(t, svc, NewPoll{
		BallotType:    entity.BallotTypeStar,
		Choices:       textChoices("a", "b"),
		DynamicVoters: true,
	})

	err := svc.CastVote(context.Background(), poll.ID, users[0].ID, entity.ChooseOneBallot{Choice: poll.Choices[0].ID})
	require.ErrorIs(t, err, ErrValidation)

	_, err = store.GetVoter(context.Background(), poll.ID, users[0].ID)
	assert.ErrorIs(t, err, repo.ErrVoterNotFound)
	assert.Empty(t, ballotsOf(t, store, poll.ID))
}

func TestCastVote_ClosedPoll(t *testing.T) {
	users := fakeUsers(2)
	svc, store := newTestVoting(t, users, nil, nil)
	poll := yesNoPoll(t, svc, false)
	require.NoError(t, svc.ClosePoll(context.Background(), manager, poll.ID))

	err := svc.CastVote(context.Background(), poll.ID, users[0].ID, entity.ChooseOneBallot{Choice: poll.Choices[0].ID})
	assert.ErrorIs(t, err, ErrPollClosed)
	assert.Empty(t, ballotsOf(t, store, poll.ID))
}

func TestCastVote_PastDeadline(t *testing.T) {
	users := fakeUsers(2)
	svc, _ := newTestVoting(t, users, nil, nil)
	poll := yesNoPoll(t, svc, false)

	svc.now = func() time.Time { return poll.Closes.Add(time.Second) }

	err := svc.CastVote(context.Background(), poll.ID, users[0].ID, entity.ChooseOneBallot{Choice: poll.Choices[0].ID})
	assert.ErrorIs(t, err, ErrPollClosed)
}

func TestCastVote_UnknownPoll(t *testing.T) {
	svc, _ := newTestVoting(t, fakeUsers(1), nil, nil)

	err := svc.CastVote(context.Background(), "missing", "u", entity.ChooseOneBallot{Choice: "x"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCastVote_FixedPoolOutsider(t *testing.T) {
	users := fakeUsers(2)
	svc, store := newTestVoting(t, users, nil, nil)
	poll := yesNoPoll(t, svc, false)

	// Joins the registry after the pool was frozen.
	late := fakeUsers(1)[0]
	store.SetUser(late)

	err := svc.CastVote(context.Background(), poll.ID, late.ID, entity.ChooseOneBallot{Choice: poll.Choices[0].ID})
	assert.ErrorIs(t, err, ErrNotEligible)
}

func TestCastVote_VoterKeepsEligibility(t *testing.T) {
	users := fakeUsers(2)
	svc, store := newTestVoting(t, users, nil, nil)
	poll := yesNoPoll(t, svc, false)

	gone := users[0]
	gone.Inactive = true
	store.SetUser(gone)

	err := svc.CastVote(context.Background(), poll.ID, gone.ID, entity.ChooseOneBallot{Choice: poll.Choices[0].ID})
	assert.NoError(t, err)
}

func TestCastVote_DynamicVoterKeepsEligibility(t *testing.T) {
	users := fakeUsers(1)
	svc, store := newTestVoting(t, users, nil, nil)
	ctx := context.Background()

	poll := mustCreatePoll(t, svc, NewPoll{
		BallotType:    entity.BallotTypeChooseOne,
		Choices:       textChoices("a", "b"),
		DynamicVoters: true,
	})

	voter, err := svc.ResolveVoter(ctx, poll, users[0].ID)
	require.NoError(t, err)
	assert.False(t, voter.Voted)

	gone := users[0]
	gone.Inactive = true
	store.SetUser(gone)

	require.NoError(t, svc.CastVote(ctx, poll.ID, gone.ID, entity.ChooseOneBallot{Choice: poll.Choices[0].ID}))

	stored, err := store.GetVoter(ctx, poll.ID, gone.ID)
	require.NoError(t, err)
	assert.Equal(t, voter.ID, stored.ID)
	assert.True(t, stored.Voted)

	late := fakeUsers(1)[0]
	late.Inactive = true
	store.SetUser(late)
	err = svc.CastVote(ctx, poll.ID, late.ID, entity.ChooseOneBallot{Choice: poll.Choices[0].ID})
	assert.ErrorIs(t, err, ErrNotEligible)
}

func TestCastVote_DynamicPoolFilter(t *testing.T) {
	users := fakeUsers(2)
	users[1].Inactive = true
	svc, store := newTestVoting(t, users, nil, nil)

	poll := mustCreatePoll(t, svc, NewPoll{
		BallotType:    entity.BallotTypeChooseOne,
		Choices:       textChoices("a", "b"),
		DynamicVoters: true,
	})
	ballot := entity.ChooseOneBallot{Choice: poll.Choices[0].ID}

	err := svc.CastVote(context.Background(), poll.ID, users[1].ID, ballot)
	require.ErrorIs(t, err, ErrNotEligible)
	_, err = store.GetVoter(context.Background(), poll.ID, users[1].ID)
	assert.ErrorIs(t, err, repo.ErrVoterNotFound)

	require.NoError(t, svc.CastVote(context.Background(), poll.ID, users[0].ID, ballot))
	voter, err := store.GetVoter(context.Background(), poll.ID, users[0].ID)
	require.NoError(t, err)
	assert.True(t, voter.Voted)
}

func TestCastVote_LockTimeoutMutatesNothing(t *testing.T) {
	users := fakeUsers(2)
	svc, store := newTestVoting(t, users, nil, nil)
	svc.cfg.LockTimeout = 20 * time.Millisecond
	poll := yesNoPoll(t, svc, false)

	unlock, err := svc.locks.Lock(context.Background(), poll.ID)
	require.NoError(t, err)
	defer unlock()

	err = svc.CastVote(context.Background(), poll.ID, users[0].ID, entity.ChooseOneBallot{Choice: poll.Choices[0].ID})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	voter, err := store.GetVoter(context.Background(), poll.ID, users[0].ID)
	require.NoError(t, err)
	assert.False(t, voter.Voted)
	assert.Empty(t, ballotsOf(t, store, poll.ID))
}

func TestCastVote_CallerCancelAfterLockStillCommits(t *testing.T) {
	users := fakeUsers(1)
	svc, store := newTestVoting(t, users, nil, nil)
	poll := yesNoPoll(t, svc, false)

	ctx, cancel := context.WithCancel(context.Background())
	svc.ballotStorage = cancelOnSave{BallotStorage: store, cancel: cancel}

	err := svc.CastVote(ctx, poll.ID, users[0].ID, entity.ChooseOneBallot{Choice: poll.Choices[0].ID})
	require.NoError(t, err)

	voter, err := store.GetVoter(context.Background(), poll.ID, users[0].ID)
	require.NoError(t, err)
	assert.True(t, voter.Voted)
}

func TestCastVote_FailedMarkRemovesBallot(t *testing.T) {
	users := fakeUsers(1)
	svc, store := newTestVoting(t, users, nil, nil)
	poll := yesNoPoll(t, svc, false)
	svc.voterStorage = racingVoters{VoterStorage: store}

	err := svc.CastVote(context.Background(), poll.ID, users[0].ID, entity.ChooseOneBallot{Choice: poll.Choices[0].ID})
	require.ErrorIs(t, err, ErrAlreadyVoted)
	assert.Empty(t, ballotsOf(t, store, poll.ID))
}

func TestCastVote_SchedulesRefresh(t *testing.T) {
	users := fakeUsers(1)
	sched := &recordingScheduler{}
	svc, _ := newTestVoting(t, users, nil, sched)
	poll := yesNoPoll(t, svc, false)

	require.NoError(t, svc.CastVote(context.Background(), poll.ID, users[0].ID, entity.ChooseOneBallot{Choice: poll.Choices[0].ID}))
	assert.Equal(t, []string{poll.ID}, sched.scheduled())
}

// cancelOnSave cancels the caller's context once the ballot is written.
type cancelOnSave struct {
	BallotStorage
	cancel context.CancelFunc
}

func (c cancelOnSave) SaveBallot(ctx context.Context, b entity.Ballot) error {
	c.cancel()
	return c.BallotStorage.SaveBallot(ctx, b)
}

// racingVoters behaves as if another writer marked the voter first.
type racingVoters struct {
	VoterStorage
}

func (racingVoters) MarkVoted(context.Context, string, *string) error {
	return repo.ErrVoterAlreadyVoted
}

type recordingScheduler struct {
	mu  sync.Mutex
	ids []string
}

func (r *recordingScheduler) Schedule(pollID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, pollID)
}

func (r *recordingScheduler) scheduled() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ids...)
}
