package in

import (
	"github.com/gofiber/fiber/v2"

	"github.com/banktrail/ingestor/internal/platform/nethttp"
)

// Router wires the two owned endpoints onto a fiber app. The admin/CRUD
// surface is an external collaborator and is not mounted here.
type Router struct {
	TickSecret    string
	TickHandler   *TickHandler
	OAuthCallback *OAuthCallbackHandler
}

func (r *Router) Register(app *fiber.App) {
	v1 := app.Group("/v1")

	v1.Post("/tick", nethttp.WithBearerSecret(r.TickSecret), r.TickHandler.Handle)
	v1.Get("/connections/oauth/callback", r.OAuthCallback.Handle)
}
