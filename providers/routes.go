package providers

import (
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/orchestra-mcp/tictactoe/src/view"
)

// RegisterRoutes registers the read-only status routes.
func (a *ClientApp) RegisterRoutes(group fiber.Router) {
	group.Get("/status", a.handleStatus)
	group.Get("/status/board", a.handleBoard)
}

func (a *ClientApp) handleStatus(c fiber.Ctx) error {
	summary := a.console.Snapshot().Summarize()
	return c.JSON(fiber.Map{
		"app":       a.ID(),
		"version":   a.Version(),
		"server":    a.cfg.HTTPBaseURL(),
		"connected": a.service.Connected(),
		"view":      summary,
	})
}

func (a *ClientApp) handleBoard(c fiber.Ctx) error {
	var b strings.Builder
	if err := view.Render(&b, a.console.Snapshot()); err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.SendString(b.String())
}
