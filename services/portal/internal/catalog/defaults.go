package catalog

import (
	"time"

	"github.com/example/fiction-portal/services/portal/internal/gateway"
)

// DefaultSeries is the placeholder catalog shown while the store is empty or
// unreachable. Visitors never see a bare "no content" or error state.
func DefaultSeries() []gateway.Series {
	return []gateway.Series{
		{
			ID:          "shadow-slave-peaceful-dreams",
			Title:       "Shadow Slave - Peaceful Dreams",
			Description: "An alternate universe story featuring Sunny, Cassie, Nephis and more characters from the Shadow Slave universe.",
			Icon:        "🌙",
			Chapters:    []gateway.Chapter{},
			CreatedAt:   time.Now().UTC(),
		},
	}
}
