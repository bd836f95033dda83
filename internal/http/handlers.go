package http

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ANIKETSHETTY47/energyhub/internal/domain"
	"github.com/ANIKETSHETTY47/energyhub/internal/normalize"
	"github.com/ANIKETSHETTY47/energyhub/internal/service"
)

func Register(app *fiber.App, svcs *service.Services, loc *time.Location) {
	app.Get("/health", func(c *fiber.Ctx) error { return c.SendString("ok") })

	app.Get("/", func(c *fiber.Ctx) error {
		snap, err := svcs.Latest.Snapshot(c.UserContext())
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).SendString(err.Error())
		}
		c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
		return c.SendString(Render(snap, loc))
	})
}

// Render formats a snapshot as plain text, converting stored milli-units
// back to physical units.
func Render(snap service.Snapshot, loc *time.Location) string {
	var b strings.Builder
	writeElectricity(&b, snap.Electricity, loc)
	b.WriteString("\n")
	writeHeat(&b, snap.Heat, loc)
	return b.String()
}

func writeElectricity(b *strings.Builder, e *domain.Electricity, loc *time.Location) {
	if e == nil {
		b.WriteString("no electricity reading\n")
		return
	}
	usage := "n/a"
	if e.CurrentUsage != nil {
		usage = milli(*e.CurrentUsage)
	}
	fmt.Fprintf(b, "electricity\n")
	fmt.Fprintf(b, "  timestamp:     %s\n", stamp(e.Timestamp, loc))
	fmt.Fprintf(b, "  used_t1:       %s\n", milli(e.UsedT1))
	fmt.Fprintf(b, "  used_t2:       %s\n", milli(e.UsedT2))
	fmt.Fprintf(b, "  used_total:    %s\n", milli(e.UsedT1+e.UsedT2))
	fmt.Fprintf(b, "  current_usage: %s\n", usage)
	fmt.Fprintf(b, "  active_tariff: %d\n", e.ActiveTariff)
}

func writeHeat(b *strings.Builder, h *domain.Heat, loc *time.Location) {
	if h == nil {
		b.WriteString("no heat reading\n")
		return
	}
	fmt.Fprintf(b, "heat\n")
	fmt.Fprintf(b, "  timestamp:     %s\n", stamp(h.Timestamp, loc))
	fmt.Fprintf(b, "  energy:        %s\n", milli(h.Energy))
	fmt.Fprintf(b, "  volume:        %s\n", milli(h.Volume))
	fmt.Fprintf(b, "  hours:         %d\n", h.Hourcounter)
}

func milli(v int64) string {
	return fmt.Sprintf("%.3f", normalize.FromMilli(v))
}

func stamp(ts int64, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return time.Unix(ts, 0).In(loc).Format(time.RFC3339)
}
