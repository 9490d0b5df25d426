package memory

import (
	"context"
	"fmt"
	"github.com/14kear/online_voting/voting-engine/internal/entity"
	"github.com/14kear/online_voting/voting-engine/internal/repo"
	"github.com/google/uuid"
	"sort"
	"sync"
	"time"
)

// Store keeps polls, voters, ballots, users and audit logs in process memory.
// Every method copies values in and out so callers never share state with
// the store.
type Store struct {
	mu sync.RWMutex

	polls     map[string]entity.Poll
	voters    map[string]entity.Voter
	voterKeys map[voterKey]string
	ballots   map[string]entity.Ballot
	users     map[string]entity.User
	logs      []entity.Log
}

type voterKey struct {
	pollID string
	userID string
}

func NewStore(users []entity.User) *Store {
	s := &Store{
		polls:     make(map[string]entity.Poll),
		voters:    make(map[string]entity.Voter),
		voterKeys: make(map[voterKey]string),
		ballots:   make(map[string]entity.Ballot),
		users:     make(map[string]entity.User, len(users)),
	}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *Store) SetUser(user entity.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = user
}

func (s *Store) SavePoll(_ context.Context, poll entity.Poll, voters []entity.Voter) error {
	const op = "storage.memory.SavePoll"

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[voterKey]struct{}, len(voters))
	for _, v := range voters {
		key := voterKey{v.PollID, v.UserID}
		if _, ok := s.voterKeys[key]; ok {
			return fmt.Errorf("%s: %w", op, repo.ErrVoterExists)
		}
		if _, ok := seen[key]; ok {
			return fmt.Errorf("%s: %w", op, repo.ErrVoterExists)
		}
		seen[key] = struct{}{}
	}

	s.polls[poll.ID] = clonePoll(poll)
	for _, v := range voters {
		s.putVoter(v)
	}
	return nil
}

func (s *Store) GetPollByID(_ context.Context, id string) (entity.Poll, error) {
	const op = "storage.memory.GetPollByID"

	s.mu.RLock()
	defer s.mu.RUnlock()
	poll, ok := s.polls[id]
	if !ok {
		return entity.Poll{}, fmt.Errorf("%s: %w", op, repo.ErrPollNotFound)
	}
	return clonePoll(poll), nil
}

func (s *Store) GetPolls(_ context.Context) ([]entity.Poll, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	polls := make([]entity.Poll, 0, len(s.polls))
	for _, p := range s.polls {
		polls = append(polls, clonePoll(p))
	}
	sort.Slice(polls, func(i, j int) bool {
		return polls[i].CreatedAt.After(polls[j].CreatedAt)
	})
	return polls, nil
}

func (s *Store) GetPollsClosingBefore(_ context.Context, t time.Time) ([]entity.Poll, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var polls []entity.Poll
	for _, p := range s.polls {
		if p.Open && p.Closes != nil && !p.Closes.After(t) {
			polls = append(polls, clonePoll(p))
		}
	}
	return polls, nil
}

func (s *Store) UpdatePollState(_ context.Context, id string, open, canChangeVote bool) error {
	const op = "storage.memory.UpdatePollState"

	s.mu.Lock()
	defer s.mu.Unlock()
	poll, ok := s.polls[id]
	if !ok {
		return fmt.Errorf("%s: %w", op, repo.ErrPollNotFound)
	}
	poll.Open = open
	poll.CanChangeVote = canChangeVote
	s.polls[id] = poll
	return nil
}

func (s *Store) LockDecision(_ context.Context, id string) (bool, error) {
	const op = "storage.memory.LockDecision"

	s.mu.Lock()
	defer s.mu.Unlock()
	poll, ok := s.polls[id]
	if !ok {
		return false, fmt.Errorf("%s: %w", op, repo.ErrPollNotFound)
	}
	if !poll.CanChangeVote {
		return false, nil
	}
	poll.CanChangeVote = false
	s.polls[id] = poll
	return true, nil
}

func (s *Store) SaveResults(_ context.Context, id string, data entity.ResultsData) error {
	const op = "storage.memory.SaveResults"

	s.mu.Lock()
	defer s.mu.Unlock()
	poll, ok := s.polls[id]
	if !ok {
		return fmt.Errorf("%s: %w", op, repo.ErrPollNotFound)
	}
	poll.Results.Data = &data
	s.polls[id] = poll
	return nil
}

func (s *Store) SetResultsPublic(_ context.Context, id string, public bool) error {
	const op = "storage.memory.SetResultsPublic"

	s.mu.Lock()
	defer s.mu.Unlock()
	poll, ok := s.polls[id]
	if !ok {
		return fmt.Errorf("%s: %w", op, repo.ErrPollNotFound)
	}
	poll.Results.Public = public
	s.polls[id] = poll
	return nil
}

func (s *Store) SaveVoter(_ context.Context, voter entity.Voter) error {
	const op = "storage.memory.SaveVoter"

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.voterKeys[voterKey{voter.PollID, voter.UserID}]; ok {
		return fmt.Errorf("%s: %w", op, repo.ErrVoterExists)
	}
	s.putVoter(voter)
	return nil
}

func (s *Store) putVoter(v entity.Voter) {
	s.voters[v.ID] = cloneVoter(v)
	s.voterKeys[voterKey{v.PollID, v.UserID}] = v.ID
}

func (s *Store) GetVoter(_ context.Context, pollID, userID string) (entity.Voter, error) {
	const op = "storage.memory.GetVoter"

	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.voterKeys[voterKey{pollID, userID}]
	if !ok {
		return entity.Voter{}, fmt.Errorf("%s: %w", op, repo.ErrVoterNotFound)
	}
	return cloneVoter(s.voters[id]), nil
}

func (s *Store) GetVotersByPollID(_ context.Context, pollID string) ([]entity.Voter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var voters []entity.Voter
	for _, v := range s.voters {
		if v.PollID == pollID {
			voters = append(voters, cloneVoter(v))
		}
	}
	sort.Slice(voters, func(i, j int) bool { return voters[i].UserID < voters[j].UserID })
	return voters, nil
}

func (s *Store) MarkVoted(_ context.Context, voterID string, ballotID *string) error {
	const op = "storage.memory.MarkVoted"

	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.voters[voterID]
	if !ok {
		return fmt.Errorf("%s: %w", op, repo.ErrVoterNotFound)
	}
	if v.Voted {
		return fmt.Errorf("%s: %w", op, repo.ErrVoterAlreadyVoted)
	}
	v.Voted = true
	if ballotID != nil {
		id := *ballotID
		v.BallotID = &id
	}
	s.voters[voterID] = v
	return nil
}

func (s *Store) SaveBallot(_ context.Context, ballot entity.Ballot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ballots[ballot.ID] = ballot
	return nil
}

func (s *Store) GetBallotsByPollID(_ context.Context, pollID string) ([]entity.Ballot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ballots []entity.Ballot
	for _, b := range s.ballots {
		if b.PollID == pollID {
			ballots = append(ballots, b)
		}
	}
	sort.Slice(ballots, func(i, j int) bool { return ballots[i].ID < ballots[j].ID })
	return ballots, nil
}

func (s *Store) DeleteBallot(_ context.Context, id string) error {
	const op = "storage.memory.DeleteBallot"

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ballots[id]; !ok {
		return fmt.Errorf("%s: %w", op, repo.ErrBallotNotFound)
	}
	delete(s.ballots, id)
	return nil
}

func (s *Store) QueryUsers(_ context.Context, filter entity.VoterFilter) ([]entity.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var users []entity.User
	for _, u := range s.users {
		if filter.Matches(u) {
			users = append(users, u)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (s *Store) FindUser(_ context.Context, userID string, filter entity.VoterFilter) (entity.User, error) {
	const op = "storage.memory.FindUser"

	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok || !filter.Matches(u) {
		return entity.User{}, fmt.Errorf("%s: %w", op, repo.ErrUserNotFound)
	}
	return u, nil
}

func (s *Store) SaveLog(_ context.Context, log *entity.Log) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := *log
	entry.ID = uuid.NewString()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	s.logs = append(s.logs, entry)
	return entry.ID, nil
}

func (s *Store) GetLogs(_ context.Context) ([]entity.Log, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	logs := make([]entity.Log, len(s.logs))
	copy(logs, s.logs)
	return logs, nil
}

func clonePoll(p entity.Poll) entity.Poll {
	p.Choices = append([]entity.Choice(nil), p.Choices...)
	if p.Closes != nil {
		closes := *p.Closes
		p.Closes = &closes
	}
	if p.Results.Data != nil {
		data := *p.Results.Data
		p.Results.Data = &data
	}
	return p
}

func cloneVoter(v entity.Voter) entity.Voter {
	if v.BallotID != nil {
		id := *v.BallotID
		v.BallotID = &id
	}
	return v
}
