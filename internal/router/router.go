package router

import (
	"github.com/fasthttp/router"

	apiHandler "github.com/obeyhq/backend/api/handler"
)

type Handlers struct {
	Task   *apiHandler.TaskHandler
	Status *apiHandler.StatusHandler
	Health *apiHandler.HealthHandler
}

func New(handlers Handlers) *router.Router {
	r := router.New()

	r.GET("/health", handlers.Health.Check)

	r.POST("/api/v1/tasks/propose", handlers.Task.Propose)
	r.POST("/api/v1/tasks/accept", handlers.Task.Accept)
	r.POST("/api/v1/tasks/extend", handlers.Task.Extend)
	r.POST("/api/v1/tasks/complete", handlers.Task.Complete)
	r.POST("/api/v1/tasks/withdraw", handlers.Task.Withdraw)
	r.GET("/api/v1/tasks/current", handlers.Task.Current)

	r.GET("/api/v1/status", handlers.Status.GetStatus)
	r.POST("/api/v1/gameover/ack", handlers.Status.AckGameOver)

	return r
}
