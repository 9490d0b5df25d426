package routes

import (
	"github.com/14kear/online_voting/voting-engine/internal/handlers"
	"github.com/gin-gonic/gin"
)

func RegisterPublicRoutes(rg *gin.RouterGroup, handler *handlers.VotingHandler) {
	{
		rg.GET("/polls", handler.GetPolls)
		rg.GET("/polls/:id", handler.GetPollByID)
		rg.GET("/polls/:id/results", handler.GetResults)
		rg.GET("/polls/:id/voters", handler.GetVoters)
	}
}

func RegisterPrivateRoutes(rg *gin.RouterGroup, handler *handlers.VotingHandler) {
	{
		rg.POST("/polls", handler.CreatePoll)
		rg.POST("/polls/:id/close", handler.ClosePoll)

		rg.POST("/polls/:id/votes", handler.CastVote)
		rg.GET("/polls/:id/voter-status", handler.VoterStatus)

		rg.POST("/polls/:id/results/process", handler.ProcessResults)
		rg.PUT("/polls/:id/results/public", handler.SetResultsPublic)

		rg.GET("/logs", handler.GetLogs)
	}
}
