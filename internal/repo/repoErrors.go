package repo

import "errors"

var (
	ErrPollNotFound      = errors.New("poll not found")
	ErrVoterNotFound     = errors.New("voter not found")
	ErrVoterExists       = errors.New("voter already exists")
	ErrVoterAlreadyVoted = errors.New("voter already voted")
	ErrBallotNotFound    = errors.New("ballot not found")
	ErrUserNotFound      = errors.New("user not found")
)
