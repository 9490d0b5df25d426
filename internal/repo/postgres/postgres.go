package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/14kear/online_voting/voting-engine/internal/entity"
	"github.com/14kear/online_voting/voting-engine/internal/repo"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"strings"
	"time"
)

const uniqueViolation = "23505"

type Storage struct {
	db *sql.DB
}

func New(postgresURL string) (*Storage, error) {
	const op = "storage.postgres.New"

	db, err := sql.Open("postgres", postgresURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{db: db}, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const pollColumns = `id, title, kind, ballot_type, choices, voter_filter, dynamic_voters, secret, open,
	can_change_vote, closes, pass_threshold, fail_threshold, results_public, results, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPoll(row rowScanner) (entity.Poll, error) {
	var (
		poll            entity.Poll
		choices, filter []byte
		results         []byte
		closes          sql.NullTime
	)

	err := row.Scan(
		&poll.ID, &poll.Title, &poll.Kind, &poll.BallotType, &choices, &filter,
		&poll.DynamicVoters, &poll.Secret, &poll.Open, &poll.CanChangeVote, &closes,
		&poll.Thresholds.Pass, &poll.Thresholds.Fail, &poll.Results.Public, &results, &poll.CreatedAt,
	)
	if err != nil {
		return entity.Poll{}, err
	}

	if err := json.Unmarshal(choices, &poll.Choices); err != nil {
		return entity.Poll{}, fmt.Errorf("decode choices: %w", err)
	}
	if err := json.Unmarshal(filter, &poll.VoterFilter); err != nil {
		return entity.Poll{}, fmt.Errorf("decode voter filter: %w", err)
	}
	if results != nil {
		var data entity.ResultsData
		if err := json.Unmarshal(results, &data); err != nil {
			return entity.Poll{}, fmt.Errorf("decode results: %w", err)
		}
		poll.Results.Data = &data
	}
	if closes.Valid {
		t := closes.Time
		poll.Closes = &t
	}

	return poll, nil
}

// SavePoll inserts the poll and bulk-loads its fixed pool with COPY in one
// transaction.
func (s *Storage) SavePoll(ctx context.Context, poll entity.Poll, voters []entity.Voter) (err error) {
	const op = "storage.postgres.SavePoll"

	choices, err := json.Marshal(poll.Choices)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	filter, err := json.Marshal(poll.VoterFilter)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	var closes sql.NullTime
	if poll.Closes != nil {
		closes = sql.NullTime{Time: *poll.Closes, Valid: true}
	}

	query := `INSERT INTO polls (id, title, kind, ballot_type, choices, voter_filter, dynamic_voters, secret, open,
		can_change_vote, closes, pass_threshold, fail_threshold, results_public, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, query,
		poll.ID, poll.Title, poll.Kind, poll.BallotType, choices, filter,
		poll.DynamicVoters, poll.Secret, poll.Open, poll.CanChangeVote, closes,
		poll.Thresholds.Pass, poll.Thresholds.Fail, poll.Results.Public, poll.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if len(voters) > 0 {
		if err = copyVoters(ctx, tx, voters); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Storage) GetPollByID(ctx context.Context, id string) (entity.Poll, error) {
	const op = "storage.postgres.GetPollByID"

	query := `SELECT ` + pollColumns + ` FROM polls WHERE id = $1`

	poll, err := scanPoll(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entity.Poll{}, fmt.Errorf("%s: %w", op, repo.ErrPollNotFound)
		}
		return entity.Poll{}, fmt.Errorf("%s: %w", op, err)
	}

	return poll, nil
}

func (s *Storage) GetPolls(ctx context.Context) ([]entity.Poll, error) {
	const op = "storage.postgres.GetPolls"

	query := `SELECT ` + pollColumns + ` FROM polls ORDER BY created_at DESC`

	return s.queryPolls(ctx, op, query)
}

func (s *Storage) GetPollsClosingBefore(ctx context.Context, t time.Time) ([]entity.Poll, error) {
	const op = "storage.postgres.GetPollsClosingBefore"

	query := `SELECT ` + pollColumns + ` FROM polls WHERE open AND closes IS NOT NULL AND closes <= $1`

	return s.queryPolls(ctx, op, query, t)
}

func (s *Storage) queryPolls(ctx context.Context, op, query string, args ...any) ([]entity.Poll, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var polls []entity.Poll
	for rows.Next() {
		poll, err := scanPoll(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		polls = append(polls, poll)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows error: %w", op, err)
	}

	return polls, nil
}

func (s *Storage) UpdatePollState(ctx context.Context, id string, open, canChangeVote bool) error {
	const op = "storage.postgres.UpdatePollState"

	const query = `UPDATE polls SET open = $1, can_change_vote = $2 WHERE id = $3`

	res, err := s.db.ExecContext(ctx, query, open, canChangeVote, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", op, repo.ErrPollNotFound)
	}
	return nil
}

func (s *Storage) LockDecision(ctx context.Context, id string) (bool, error) {
	const op = "storage.postgres.LockDecision"

	const query = `UPDATE polls SET can_change_vote = FALSE WHERE id = $1 AND can_change_vote`

	res, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return true, nil
	}

	if _, err := s.GetPollByID(ctx, id); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return false, nil
}

func (s *Storage) SaveResults(ctx context.Context, id string, data entity.ResultsData) error {
	const op = "storage.postgres.SaveResults"

	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	res, err := s.db.ExecContext(ctx, `UPDATE polls SET results = $1 WHERE id = $2`, raw, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", op, repo.ErrPollNotFound)
	}
	return nil
}

func (s *Storage) SetResultsPublic(ctx context.Context, id string, public bool) error {
	const op = "storage.postgres.SetResultsPublic"

	res, err := s.db.ExecContext(ctx, `UPDATE polls SET results_public = $1 WHERE id = $2`, public, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", op, repo.ErrPollNotFound)
	}
	return nil
}

func copyVoters(ctx context.Context, tx *sql.Tx, voters []entity.Voter) error {
	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("voters", "id", "poll_id", "user_id", "voted"))
	if err != nil {
		return err
	}

	for _, v := range voters {
		if _, err := stmt.ExecContext(ctx, v.ID, v.PollID, v.UserID, v.Voted); err != nil {
			_ = stmt.Close()
			return mapUnique(err)
		}
	}

	if _, err := stmt.ExecContext(ctx); err != nil {
		_ = stmt.Close()
		return mapUnique(err)
	}
	return stmt.Close()
}

func (s *Storage) SaveVoter(ctx context.Context, voter entity.Voter) error {
	const op = "storage.postgres.SaveVoter"

	query := `INSERT INTO voters (id, poll_id, user_id, ballot_id, voted) VALUES ($1, $2, $3, $4, $5)`

	_, err := s.db.ExecContext(ctx, query, voter.ID, voter.PollID, voter.UserID, voter.BallotID, voter.Voted)
	if err != nil {
		return fmt.Errorf("%s: %w", op, mapUnique(err))
	}
	return nil
}

func (s *Storage) GetVoter(ctx context.Context, pollID, userID string) (entity.Voter, error) {
	const op = "storage.postgres.GetVoter"

	query := `SELECT id, poll_id, user_id, ballot_id, voted FROM voters WHERE poll_id = $1 AND user_id = $2`

	var (
		v        entity.Voter
		ballotID sql.NullString
	)
	err := s.db.QueryRowContext(ctx, query, pollID, userID).Scan(&v.ID, &v.PollID, &v.UserID, &ballotID, &v.Voted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entity.Voter{}, fmt.Errorf("%s: %w", op, repo.ErrVoterNotFound)
		}
		return entity.Voter{}, fmt.Errorf("%s: %w", op, err)
	}
	if ballotID.Valid {
		v.BallotID = &ballotID.String
	}

	return v, nil
}

func (s *Storage) GetVotersByPollID(ctx context.Context, pollID string) ([]entity.Voter, error) {
	const op = "storage.postgres.GetVotersByPollID"

	query := `SELECT id, poll_id, user_id, ballot_id, voted FROM voters WHERE poll_id = $1 ORDER BY user_id`

	rows, err := s.db.QueryContext(ctx, query, pollID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var voters []entity.Voter
	for rows.Next() {
		var (
			v        entity.Voter
			ballotID sql.NullString
		)
		if err := rows.Scan(&v.ID, &v.PollID, &v.UserID, &ballotID, &v.Voted); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		if ballotID.Valid {
			id := ballotID.String
			v.BallotID = &id
		}
		voters = append(voters, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows error: %w", op, err)
	}

	return voters, nil
}

func (s *Storage) MarkVoted(ctx context.Context, voterID string, ballotID *string) error {
	const op = "storage.postgres.MarkVoted"

	const query = `UPDATE voters SET voted = TRUE, ballot_id = $1 WHERE id = $2 AND NOT voted`

	res, err := s.db.ExecContext(ctx, query, ballotID, voterID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM voters WHERE id = $1)`, voterID).Scan(&exists); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !exists {
		return fmt.Errorf("%s: %w", op, repo.ErrVoterNotFound)
	}
	return fmt.Errorf("%s: %w", op, repo.ErrVoterAlreadyVoted)
}

func (s *Storage) SaveBallot(ctx context.Context, ballot entity.Ballot) error {
	const op = "storage.postgres.SaveBallot"

	payload, err := entity.MarshalBallotPayload(ballot.Payload)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	query := `INSERT INTO ballots (id, poll_id, payload, cast_at) VALUES ($1, $2, $3, $4)`

	if _, err := s.db.ExecContext(ctx, query, ballot.ID, ballot.PollID, payload, ballot.CastAt); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Storage) GetBallotsByPollID(ctx context.Context, pollID string) ([]entity.Ballot, error) {
	const op = "storage.postgres.GetBallotsByPollID"

	query := `SELECT id, poll_id, payload, cast_at FROM ballots WHERE poll_id = $1 ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, pollID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var ballots []entity.Ballot
	for rows.Next() {
		var (
			b   entity.Ballot
			raw []byte
		)
		if err := rows.Scan(&b.ID, &b.PollID, &raw, &b.CastAt); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		if b.Payload, err = entity.UnmarshalBallotPayload(raw); err != nil {
			return nil, fmt.Errorf("%s: ballot %s: %w", op, b.ID, err)
		}
		ballots = append(ballots, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows error: %w", op, err)
	}

	return ballots, nil
}

func (s *Storage) DeleteBallot(ctx context.Context, id string) error {
	const op = "storage.postgres.DeleteBallot"

	res, err := s.db.ExecContext(ctx, `DELETE FROM ballots WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", op, repo.ErrBallotNotFound)
	}
	return nil
}

func (s *Storage) SaveUser(ctx context.Context, user entity.User) error {
	const op = "storage.postgres.SaveUser"

	query := `INSERT INTO users (id, name, inactive, party_id) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, inactive = EXCLUDED.inactive, party_id = EXCLUDED.party_id`

	if _, err := s.db.ExecContext(ctx, query, user.ID, user.Name, user.Inactive, user.PartyID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// filterClause renders a voter filter as SQL conditions on the users table,
// numbering placeholders from offset+1.
func filterClause(filter entity.VoterFilter, offset int) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if filter.Inactive != nil {
		args = append(args, *filter.Inactive)
		conds = append(conds, fmt.Sprintf("inactive = $%d", offset+len(args)))
	}
	if filter.Party != nil {
		args = append(args, *filter.Party)
		conds = append(conds, fmt.Sprintf("party_id = $%d", offset+len(args)))
	}
	if len(conds) == 0 {
		return "TRUE", nil
	}
	return strings.Join(conds, " AND "), args
}

func (s *Storage) QueryUsers(ctx context.Context, filter entity.VoterFilter) ([]entity.User, error) {
	const op = "storage.postgres.QueryUsers"

	where, args := filterClause(filter, 0)
	query := `SELECT id, name, inactive, party_id FROM users WHERE ` + where + ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var users []entity.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		users = append(users, u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows error: %w", op, err)
	}

	return users, nil
}

// FindUser evaluates the filter together with the user id in one query.
func (s *Storage) FindUser(ctx context.Context, userID string, filter entity.VoterFilter) (entity.User, error) {
	const op = "storage.postgres.FindUser"

	where, args := filterClause(filter, 1)
	query := `SELECT id, name, inactive, party_id FROM users WHERE id = $1 AND ` + where

	u, err := scanUser(s.db.QueryRowContext(ctx, query, append([]any{userID}, args...)...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entity.User{}, fmt.Errorf("%s: %w", op, repo.ErrUserNotFound)
		}
		return entity.User{}, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

func scanUser(row rowScanner) (entity.User, error) {
	var (
		u     entity.User
		party sql.NullString
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Inactive, &party); err != nil {
		return entity.User{}, err
	}
	if party.Valid {
		u.PartyID = &party.String
	}
	return u, nil
}

func (s *Storage) SaveLog(ctx context.Context, log *entity.Log) (string, error) {
	const op = "storage.postgres.SaveLog"

	query := `INSERT INTO logs (id, user_id, action, poll_id, created_at) VALUES ($1, $2, $3, $4, $5)`

	id := uuid.NewString()
	createdAt := log.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	if _, err := s.db.ExecContext(ctx, query, id, log.UserID, log.Action, log.PollID, createdAt); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

func (s *Storage) GetLogs(ctx context.Context) ([]entity.Log, error) {
	const op = "storage.postgres.GetLogs"

	query := `SELECT id, user_id, action, poll_id, created_at FROM logs ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var logs []entity.Log
	for rows.Next() {
		var (
			l      entity.Log
			pollID sql.NullString
		)
		if err := rows.Scan(&l.ID, &l.UserID, &l.Action, &pollID, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		if pollID.Valid {
			id := pollID.String
			l.PollID = &id
		}
		logs = append(logs, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows error: %w", op, err)
	}

	return logs, nil
}

func mapUnique(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return repo.ErrVoterExists
	}
	return err
}
