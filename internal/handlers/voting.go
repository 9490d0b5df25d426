package handlers

import (
	"context"
	"errors"
	"github.com/14kear/online_voting/voting-engine/internal/entity"
	"github.com/14kear/online_voting/voting-engine/internal/middleware"
	"github.com/14kear/online_voting/voting-engine/internal/services"
	"github.com/14kear/sso-prettyslog/slogpretty/errors"
	"github.com/gin-gonic/gin"
	"log/slog"
	"net/http"
	"time"
)

type VotingHandler struct {
	log           *slog.Logger
	votingService *services.OnlineVoting
}

type CreatePollRequest struct {
	Title         string              `json:"title" binding:"required"`
	Kind          entity.PollKind     `json:"kind"`
	BallotType    entity.BallotType   `json:"ballot_type" binding:"required"`
	Choices       []entity.Choice     `json:"choices" binding:"required,min=1"`
	VoterFilter   *entity.VoterFilter `json:"voter_filter"`
	DynamicVoters bool                `json:"dynamic_voters"`
	Secret        bool                `json:"secret"`
	ResultsPublic bool                `json:"results_public"`
	Closes        *time.Time          `json:"closes"`
}

type SetResultsPublicRequest struct {
	Public *bool `json:"public" binding:"required"`
}

func NewVotingHandler(log *slog.Logger, votingService *services.OnlineVoting) *VotingHandler {
	return &VotingHandler{log: log, votingService: votingService}
}

func (v *VotingHandler) CreatePoll(c *gin.Context) {
	var req CreatePollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}

	poll, err := v.votingService.CreatePoll(c.Request.Context(), viewer(c), services.NewPoll{
		Title:         req.Title,
		Kind:          req.Kind,
		BallotType:    req.BallotType,
		Choices:       req.Choices,
		VoterFilter:   req.VoterFilter,
		DynamicVoters: req.DynamicVoters,
		Secret:        req.Secret,
		ResultsPublic: req.ResultsPublic,
		Closes:        req.Closes,
	})
	if err != nil {
		v.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"poll": poll})
}

func (v *VotingHandler) GetPolls(c *gin.Context) {
	polls, err := v.votingService.GetPolls(c.Request.Context(), viewer(c))
	if err != nil {
		v.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"polls": polls})
}

func (v *VotingHandler) GetPollByID(c *gin.Context) {
	poll, err := v.votingService.GetPollByID(c.Request.Context(), c.Param("id"), viewer(c))
	if err != nil {
		v.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"poll": poll})
}

func (v *VotingHandler) GetResults(c *gin.Context) {
	results, err := v.votingService.GetResults(c.Request.Context(), c.Param("id"), viewer(c))
	if err != nil {
		v.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (v *VotingHandler) GetVoters(c *gin.Context) {
	voters, err := v.votingService.GetVoters(c.Request.Context(), c.Param("id"), viewer(c))
	if err != nil {
		v.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"voters": voters})
}

// CastVote expects the ballot itself as the body, tagged by "ballot_type".
func (v *VotingHandler) CastVote(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}

	payload, err := entity.UnmarshalBallotPayload(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ballot"})
		return
	}

	err = v.votingService.CastVote(c.Request.Context(), c.Param("id"), c.GetString(middleware.UserIDKey), payload)
	if err != nil {
		v.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "voted"})
}

func (v *VotingHandler) VoterStatus(c *gin.Context) {
	status, err := v.votingService.VoterStatus(c.Request.Context(), c.Param("id"), c.GetString(middleware.UserIDKey))
	if err != nil {
		v.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

func (v *VotingHandler) ProcessResults(c *gin.Context) {
	results, err := v.votingService.ProcessResults(c.Request.Context(), viewer(c), c.Param("id"))
	if err != nil {
		v.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (v *VotingHandler) ClosePoll(c *gin.Context) {
	if err := v.votingService.ClosePoll(c.Request.Context(), viewer(c), c.Param("id")); err != nil {
		v.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "closed"})
}

func (v *VotingHandler) SetResultsPublic(c *gin.Context) {
	var req SetResultsPublicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}

	err := v.votingService.SetResultsPublic(c.Request.Context(), viewer(c), c.Param("id"), *req.Public)
	if err != nil {
		v.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"public": *req.Public})
}

func (v *VotingHandler) GetLogs(c *gin.Context) {
	logs, err := v.votingService.GetLogs(c.Request.Context(), viewer(c))
	if err != nil {
		v.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"logs": logs})
}

func viewer(c *gin.Context) services.Viewer {
	return services.Viewer{
		UserID:  c.GetString(middleware.UserIDKey),
		Manager: c.GetBool(middleware.ManagerKey),
	}
}

func (v *VotingHandler) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	msg := "internal error"

	switch {
	case errors.Is(err, services.ErrNotFound):
		status, msg = http.StatusNotFound, "not found"
	case errors.Is(err, services.ErrPollClosed):
		status, msg = http.StatusConflict, services.ErrPollClosed.Error()
	case errors.Is(err, services.ErrAlreadyVoted):
		status, msg = http.StatusConflict, services.ErrAlreadyVoted.Error()
	case errors.Is(err, services.ErrNotEligible):
		status, msg = http.StatusForbidden, services.ErrNotEligible.Error()
	case errors.Is(err, services.ErrResultsNotPublic):
		status, msg = http.StatusForbidden, services.ErrResultsNotPublic.Error()
	case errors.Is(err, services.ErrForbidden):
		status, msg = http.StatusForbidden, services.ErrForbidden.Error()
	case errors.Is(err, services.ErrValidation):
		status, msg = http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		status, msg = http.StatusServiceUnavailable, "poll is busy, try again"
	default:
		v.log.Error("request failed", slog.String("path", c.FullPath()), sl.Err(err))
	}

	c.JSON(status, gin.H{"error": msg})
}
