package services

import (
	"context"
	"github.com/14kear/online_voting/voting-engine/internal/config"
	"github.com/14kear/online_voting/voting-engine/internal/entity"
	"github.com/14kear/online_voting/voting-engine/internal/lib/logger"
	"github.com/14kear/online_voting/voting-engine/internal/repo/memory"
	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

var manager = Viewer{UserID: "manager", Manager: true}

func testConfig() config.VotingConfig {
	return config.VotingConfig{
		LockTimeout:        time.Second,
		TallyWorkers:       2,
		TallyTimeout:       time.Second,
		SimplePollDuration: 72 * time.Hour,
		WebappURL:          "https://gov.example.org",
	}
}

func fakeUsers(n int) []entity.User {
	users := make([]entity.User, n)
	for i := range users {
		users[i] = entity.User{ID: gofakeit.UUID(), Name: gofakeit.Name()}
	}
	return users
}

// newTestVoting wires the service to an in-memory store that also serves as
// the user registry.
func newTestVoting(t *testing.T, users []entity.User, notifier Notifier, scheduler RefreshScheduler) (*OnlineVoting, *memory.Store) {
	t.Helper()
	store := memory.NewStore(users)
	svc := NewOnlineVoting(
		logger.Discard(),
		store, store, store, store, store,
		notifier,
		scheduler,
		nil,
		testConfig(),
	)
	return svc, store
}

func textChoices(texts ...string) []entity.Choice {
	choices := make([]entity.Choice, len(texts))
	for i, t := range texts {
		choices[i] = entity.Choice{Text: t}
	}
	return choices
}

func mustCreatePoll(t *testing.T, svc *OnlineVoting, in NewPoll) entity.Poll {
	t.Helper()
	if in.Title == "" {
		in.Title = gofakeit.Sentence(4)
	}
	poll, err := svc.CreatePoll(context.Background(), manager, in)
	require.NoError(t, err)
	return poll
}

func ballotsOf(t *testing.T, store *memory.Store, pollID string) []entity.Ballot {
	t.Helper()
	ballots, err := store.GetBallotsByPollID(context.Background(), pollID)
	require.NoError(t, err)
	return ballots
}
