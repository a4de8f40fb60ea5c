package notify

import (
	"fmt"
	"strings"

	"serotonyl.ru/birdwatch/internal/features/nearby"
)

// digestLimit: сколько наблюдений показывать в одной сводке.
const digestLimit = 20

func spotText(s *nearby.Spot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📍 New spot #%d: %s\n", s.ID, s.Name)
	fmt.Fprintf(&b, "%.5f, %.5f\n", s.Latitude, s.Longitude)
	if d := strings.TrimSpace(s.Description); d != "" {
		b.WriteString(d + "\n")
	}
	fmt.Fprintf(&b, "Verify: /verify_spot %d", s.ID)
	return b.String()
}

func sightingLine(g *nearby.Sighting) string {
	place := "unknown spot"
	if g.Spot != nil {
		place = g.Spot.Name
	}
	return fmt.Sprintf("#%d %s (%s) at %s on %s", g.ID, g.Bird.Name, g.Bird.Rarity, place, g.SightingDate)
}

func sightingText(g *nearby.Sighting) string {
	var b strings.Builder
	b.WriteString("🐦 New sighting " + sightingLine(g) + "\n")
	if n := strings.TrimSpace(g.Notes); n != "" {
		b.WriteString(n + "\n")
	}
	fmt.Fprintf(&b, "Verify: /verify_sighting %d", g.ID)
	return b.String()
}

// digestText собирает сводку непроверенных наблюдений. Пустой список даёт "".
func digestText(pending []*nearby.Sighting) string {
	if len(pending) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "🕓 %d sightings waiting for verification:\n", len(pending))
	for i, g := range pending {
		if i == digestLimit {
			fmt.Fprintf(&b, "…and %d more", len(pending)-digestLimit)
			break
		}
		b.WriteString(sightingLine(g) + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

const helpText = `Moderator commands:
/pending: list unverified sightings
/verify_sighting <id>: mark a sighting verified
/verify_spot <id>: mark a spot verified`
