package services

import (
	"context"
	"errors"
	"fmt"
	"github.com/14kear/online_voting/voting-engine/internal/config"
	"github.com/14kear/online_voting/voting-engine/internal/entity"
	"github.com/14kear/online_voting/voting-engine/internal/lib/keymutex"
	"github.com/14kear/online_voting/voting-engine/internal/metrics"
	"github.com/14kear/online_voting/voting-engine/internal/repo"
	"github.com/14kear/sso-prettyslog/slogpretty/errors"
	"github.com/google/uuid"
	"log/slog"
	"time"
)

// SystemActor is recorded in audit logs for actions taken by background
// workers rather than a user.
const SystemActor = "system"

type OnlineVoting struct {
	log           *slog.Logger
	pollStorage   PollStorage
	voterStorage  VoterStorage
	ballotStorage BallotStorage
	logStorage    LogStorage
	userProvider  UserProvider
	notifier      Notifier
	scheduler     RefreshScheduler
	metrics       *metrics.Metrics
	cfg           config.VotingConfig
	locks         *keymutex.KeyMutex
	refreshLocks  *keymutex.KeyMutex
	now           func() time.Time
}

type PollStorage interface {
	// SavePoll stores a new poll together with its fixed pool. Either both
	// are stored or neither is.
	SavePoll(ctx context.Context, poll entity.Poll, voters []entity.Voter) error
	GetPollByID(ctx context.Context, id string) (entity.Poll, error)
	GetPolls(ctx context.Context) ([]entity.Poll, error)
	GetPollsClosingBefore(ctx context.Context, t time.Time) ([]entity.Poll, error)
	UpdatePollState(ctx context.Context, id string, open, canChangeVote bool) error
	// LockDecision flips can_change_vote from true to false and reports
	// whether this call performed the flip.
	LockDecision(ctx context.Context, id string) (bool, error)
	SaveResults(ctx context.Context, id string, data entity.ResultsData) error
	SetResultsPublic(ctx context.Context, id string, public bool) error
}

type VoterStorage interface {
	SaveVoter(ctx context.Context, voter entity.Voter) error
	GetVoter(ctx context.Context, pollID, userID string) (entity.Voter, error)
	GetVotersByPollID(ctx context.Context, pollID string) ([]entity.Voter, error)
	// MarkVoted sets voted=true only if it is still false, otherwise it
	// returns repo.ErrVoterAlreadyVoted.
	MarkVoted(ctx context.Context, voterID string, ballotID *string) error
}

type BallotStorage interface {
	SaveBallot(ctx context.Context, ballot entity.Ballot) error
	GetBallotsByPollID(ctx context.Context, pollID string) ([]entity.Ballot, error)
	DeleteBallot(ctx context.Context, id string) error
}

type LogStorage interface {
	SaveLog(ctx context.Context, log *entity.Log) (string, error)
	GetLogs(ctx context.Context) ([]entity.Log, error)
}

//go:generate mockgen -destination=mocks/mocks.go -package=mocks github.com/14kear/online_voting/voting-engine/internal/services UserProvider,Notifier,RefreshScheduler

// UserProvider is the user registry. FindUser returns repo.ErrUserNotFound
// when no user with the id satisfies the filter.
type UserProvider interface {
	QueryUsers(ctx context.Context, filter entity.VoterFilter) ([]entity.User, error)
	FindUser(ctx context.Context, userID string, filter entity.VoterFilter) (entity.User, error)
}

type Notifier interface {
	Announce(ctx context.Context, message string) error
}

type RefreshScheduler interface {
	Schedule(pollID string)
}

// Viewer identifies who is reading or acting. Managers hold the
// manage_polls permission.
type Viewer struct {
	UserID  string
	Manager bool
}

func NewOnlineVoting(
	log *slog.Logger,
	pollStorage PollStorage,
	voterStorage VoterStorage,
	ballotStorage BallotStorage,
	logStorage LogStorage,
	userProvider UserProvider,
	notifier Notifier,
	scheduler RefreshScheduler,
	metrics *metrics.Metrics,
	cfg config.VotingConfig,
) *OnlineVoting {
	return &OnlineVoting{
		log:           log,
		pollStorage:   pollStorage,
		voterStorage:  voterStorage,
		ballotStorage: ballotStorage,
		logStorage:    logStorage,
		userProvider:  userProvider,
		notifier:      notifier,
		scheduler:     scheduler,
		metrics:       metrics,
		cfg:           cfg,
		locks:         keymutex.New(),
		refreshLocks:  keymutex.New(),
		now:           time.Now,
	}
}

// NewPoll describes a poll to create. Choice ids are assigned by the engine.
type NewPoll struct {
	Title         string
	Kind          entity.PollKind
	BallotType    entity.BallotType
	Choices       []entity.Choice
	VoterFilter   *entity.VoterFilter
	DynamicVoters bool
	Secret        bool
	ResultsPublic bool
	Closes        *time.Time
}

func (v *OnlineVoting) CreatePoll(ctx context.Context, actor Viewer, in NewPoll) (entity.Poll, error) {
	const op = "OnlineVoting.CreatePoll"

	log := v.log.With(slog.String("op", op), slog.String("user_id", actor.UserID))

	if !actor.Manager {
		return entity.Poll{}, fmt.Errorf("%s: %w", op, ErrForbidden)
	}

	now := v.now()
	poll, err := v.buildPoll(in, now)
	if err != nil {
		return entity.Poll{}, fmt.Errorf("%s: %w", op, err)
	}

	var voters []entity.Voter
	if !poll.DynamicVoters {
		users, err := v.userProvider.QueryUsers(ctx, poll.VoterFilter)
		if err != nil {
			return entity.Poll{}, fmt.Errorf("%s: query voters: %w", op, err)
		}
		voters = make([]entity.Voter, 0, len(users))
		for _, u := range users {
			voters = append(voters, entity.Voter{
				ID:     uuid.NewString(),
				PollID: poll.ID,
				UserID: u.ID,
			})
		}
		poll.Thresholds = Thresholds(len(voters))
	}

	if err := v.pollStorage.SavePoll(ctx, poll, voters); err != nil {
		return entity.Poll{}, fmt.Errorf("%s: %w", op, err)
	}

	v.audit(ctx, actor.UserID, op, poll.ID)
	log.Info("poll created",
		slog.String("poll_id", poll.ID),
		slog.String("ballot_type", string(poll.BallotType)),
		slog.Int("voters", len(voters)),
	)

	return poll, nil
}

func (v *OnlineVoting) buildPoll(in NewPoll, now time.Time) (entity.Poll, error) {
	if in.Title == "" {
		return entity.Poll{}, invalid("title is empty")
	}

	kind := in.Kind
	if kind == "" {
		kind = entity.PollKindStandard
	}
	if !kind.Valid() {
		return entity.Poll{}, invalid("unknown poll kind %q", kind)
	}
	if !in.BallotType.Valid() {
		return entity.Poll{}, invalid("unknown ballot type %q", in.BallotType)
	}

	closes := in.Closes
	switch kind {
	case entity.PollKindSimple:
		if in.BallotType != entity.BallotTypeChooseOne {
			return entity.Poll{}, invalid("simple polls use choose-one ballots")
		}
		if len(in.Choices) < 2 {
			return entity.Poll{}, invalid("simple polls need at least two choices")
		}
		if closes == nil {
			c := now.Add(v.cfg.SimplePollDuration)
			closes = &c
		}
	case entity.PollKindElection:
		if in.BallotType != entity.BallotTypeInstantRunoff {
			return entity.Poll{}, invalid("elections use instant-runoff ballots")
		}
		for i, c := range in.Choices {
			if !c.IsCandidate() {
				return entity.Poll{}, invalid("election choice %d is not a candidate", i)
			}
		}
	}
	if len(in.Choices) == 0 {
		return entity.Poll{}, invalid("poll has no choices")
	}
	if closes != nil && !closes.After(now) {
		return entity.Poll{}, invalid("close time is in the past")
	}

	choices := make([]entity.Choice, len(in.Choices))
	for i, c := range in.Choices {
		if c.Text == "" && c.Candidate == nil {
			return entity.Poll{}, invalid("choice %d has neither text nor candidate", i)
		}
		c.ID = uuid.NewString()
		choices[i] = c
	}

	filter := entity.DefaultVoterFilter()
	if in.VoterFilter != nil {
		filter = *in.VoterFilter
	}

	return entity.Poll{
		ID:            uuid.NewString(),
		Title:         in.Title,
		Kind:          kind,
		Choices:       choices,
		BallotType:    in.BallotType,
		VoterFilter:   filter,
		DynamicVoters: in.DynamicVoters,
		Secret:        in.Secret,
		Open:          true,
		CanChangeVote: true,
		Closes:        closes,
		Results:       entity.PollResults{Public: in.ResultsPublic},
		CreatedAt:     now,
	}, nil
}

// GetPollByID returns the poll with its results filtered for viewer.
func (v *OnlineVoting) GetPollByID(ctx context.Context, id string, viewer Viewer) (entity.Poll, error) {
	const op = "OnlineVoting.GetPollByID"

	poll, err := v.loadPoll(ctx, id)
	if err != nil {
		return entity.Poll{}, fmt.Errorf("%s: %w", op, err)
	}

	return FilterPoll(poll, viewer), nil
}

func (v *OnlineVoting) GetPolls(ctx context.Context, viewer Viewer) ([]entity.Poll, error) {
	const op = "OnlineVoting.GetPolls"

	polls, err := v.pollStorage.GetPolls(ctx)
	if err != nil {
		return []entity.Poll{}, fmt.Errorf("%s: %w", op, err)
	}

	for i := range polls {
		polls[i] = FilterPoll(polls[i], viewer)
	}
	return polls, nil
}

// GetResults returns the cached results of a poll as the viewer may see them.
// It returns nil data when no tally has run yet.
func (v *OnlineVoting) GetResults(ctx context.Context, id string, viewer Viewer) (*entity.ResultsData, error) {
	const op = "OnlineVoting.GetResults"

	poll, err := v.loadPoll(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	data, err := FilterResults(poll, viewer)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return data, nil
}

func (v *OnlineVoting) GetVoters(ctx context.Context, pollID string, viewer Viewer) ([]entity.Voter, error) {
	const op = "OnlineVoting.GetVoters"

	poll, err := v.loadPoll(ctx, pollID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	voters, err := v.voterStorage.GetVotersByPollID(ctx, pollID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return FilterVoters(poll, voters, viewer), nil
}

// ClosePoll stops a poll from accepting votes and unlocks its final counts.
// Closing an already closed poll is a no-op.
func (v *OnlineVoting) ClosePoll(ctx context.Context, actor Viewer, pollID string) error {
	const op = "OnlineVoting.ClosePoll"

	if !actor.Manager {
		return fmt.Errorf("%s: %w", op, ErrForbidden)
	}

	if err := v.closePoll(ctx, actor.UserID, pollID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// CloseExpiredPolls closes every open poll whose deadline has passed and
// returns how many were closed.
func (v *OnlineVoting) CloseExpiredPolls(ctx context.Context) (int, error) {
	const op = "OnlineVoting.CloseExpiredPolls"

	log := v.log.With(slog.String("op", op))

	polls, err := v.pollStorage.GetPollsClosingBefore(ctx, v.now())
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	closed := 0
	var errs []error
	for _, p := range polls {
		if err := v.closePoll(ctx, SystemActor, p.ID); err != nil {
			log.Error("failed to close poll", slog.String("poll_id", p.ID), sl.Err(err))
			errs = append(errs, err)
			continue
		}
		closed++
	}

	if err := errors.Join(errs...); err != nil {
		return closed, fmt.Errorf("%s: %w", op, err)
	}
	return closed, nil
}

func (v *OnlineVoting) closePoll(ctx context.Context, userID, pollID string) error {
	unlock, err := v.lockPoll(ctx, pollID)
	if err != nil {
		return err
	}

	poll, err := v.loadPoll(ctx, pollID)
	if err != nil {
		unlock()
		return err
	}
	if !poll.Open {
		unlock()
		return nil
	}

	err = v.pollStorage.UpdatePollState(context.WithoutCancel(ctx), pollID, false, false)
	unlock()
	if err != nil {
		return err
	}

	v.metrics.PollClosed()
	v.audit(ctx, userID, "OnlineVoting.ClosePoll", pollID)
	v.log.Info("poll closed", slog.String("poll_id", pollID), slog.String("by", userID))

	v.scheduleRefresh(pollID)
	return nil
}

func (v *OnlineVoting) SetResultsPublic(ctx context.Context, actor Viewer, pollID string, public bool) error {
	const op = "OnlineVoting.SetResultsPublic"

	if !actor.Manager {
		return fmt.Errorf("%s: %w", op, ErrForbidden)
	}

	if err := v.pollStorage.SetResultsPublic(ctx, pollID, public); err != nil {
		return fmt.Errorf("%s: %w", op, notFound(err))
	}

	v.audit(ctx, actor.UserID, op, pollID)
	return nil
}

// ProcessResults recomputes a poll's results synchronously and returns them.
func (v *OnlineVoting) ProcessResults(ctx context.Context, actor Viewer, pollID string) (*entity.ResultsData, error) {
	const op = "OnlineVoting.ProcessResults"

	if !actor.Manager {
		return nil, fmt.Errorf("%s: %w", op, ErrForbidden)
	}

	if err := v.RefreshResults(ctx, pollID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	v.audit(ctx, actor.UserID, op, pollID)
	return v.GetResults(ctx, pollID, actor)
}

func (v *OnlineVoting) GetLogs(ctx context.Context, actor Viewer) ([]entity.Log, error) {
	const op = "OnlineVoting.GetLogs"

	if !actor.Manager {
		return nil, fmt.Errorf("%s: %w", op, ErrForbidden)
	}

	logs, err := v.logStorage.GetLogs(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return logs, nil
}

func (v *OnlineVoting) loadPoll(ctx context.Context, id string) (entity.Poll, error) {
	poll, err := v.pollStorage.GetPollByID(ctx, id)
	if err != nil {
		return entity.Poll{}, notFound(err)
	}
	return poll, nil
}

func (v *OnlineVoting) lockPoll(ctx context.Context, pollID string) (func(), error) {
	if v.cfg.LockTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.cfg.LockTimeout)
		defer cancel()
	}

	start := time.Now()
	unlock, err := v.locks.Lock(ctx, pollID)
	v.metrics.LockWaited(time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("acquire poll lock: %w", err)
	}
	return unlock, nil
}

func (v *OnlineVoting) scheduleRefresh(pollID string) {
	if v.scheduler != nil {
		v.scheduler.Schedule(pollID)
	}
}

// audit records a manager or system action. Failures are logged only.
func (v *OnlineVoting) audit(ctx context.Context, userID, action, pollID string) {
	id := pollID
	entry := &entity.Log{
		UserID:    userID,
		Action:    action,
		PollID:    &id,
		CreatedAt: v.now(),
	}
	if _, err := v.logStorage.SaveLog(context.WithoutCancel(ctx), entry); err != nil {
		v.log.Warn("failed to save audit log", slog.String("action", action), sl.Err(err))
	}
}

func notFound(err error) error {
	switch {
	case errors.Is(err, repo.ErrPollNotFound),
		errors.Is(err, repo.ErrVoterNotFound),
		errors.Is(err, repo.ErrBallotNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return err
}
