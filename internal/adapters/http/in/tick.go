// Package in holds the two HTTP endpoints the orchestrator owns directly
// (§6): the scheduler tick entry point and the OAuth callback. Everything
// else in the CRUD surface is an external collaborator.
package in

import (
	"github.com/gofiber/fiber/v2"

	"github.com/banktrail/ingestor/internal/platform/nethttp"
	"github.com/banktrail/ingestor/internal/scheduler"
	"github.com/banktrail/ingestor/pkg/model"
)

// TickHandler exposes the scheduler's dispatch loop as a bearer-secret
// protected endpoint an external cron calls once per schedule bucket (§6).
//
// @Summary     Run one scheduler tick
// @Description Dispatches every connection due in the given schedule bucket
// @Tags        scheduler
// @Produce     json
// @Param       bucket query string true "schedule bucket (hourly, every_4h, every_12h, daily, weekly, manual)"
// @Success     200 {object} scheduler.Summary
// @Failure     400 {object} nethttp.ResponseError
// @Failure     401 {object} nethttp.ResponseError
// @Router      /v1/tick [post]
type TickHandler struct {
	Dispatcher *scheduler.Dispatcher
}

func (h *TickHandler) Handle(c *fiber.Ctx) error {
	bucket := model.SyncSchedule(c.Query("bucket"))
	if bucket == "" {
		return nethttp.BadRequest(c, "0010", "Missing Bucket", "Query parameter 'bucket' is required.")
	}

	summary, err := h.Dispatcher.Tick(c.Context(), bucket)
	if err != nil {
		return nethttp.WithError(c, err)
	}

	return nethttp.OK(c, summary)
}
