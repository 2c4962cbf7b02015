package incidents

import (
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/linesmerrill/dispatch-board/livesync"
	"github.com/linesmerrill/dispatch-board/models"
)

// DefaultColor is used for new reports and for any stored color that is not #RRGGBB
const DefaultColor = "#ff0000"

// Empty-state copy of each feed
const (
	EmptyNorth = "No activity in the North"
	EmptySouth = "No activity in the South"
)

var validate = validator.New()

// Card is the rendered form of an incident inside a feed
type Card struct {
	ID       string
	Title    string
	Band     string
	Color    string
	PlayerID string
	Zone     models.Zone
	Status   models.Status
	Time     string
}

// Feeds is the live view of both zone feeds
type Feeds = livesync.Sync[models.Incident, Card]

// NewFeeds returns the incident reconciler with one container per zone
func NewFeeds(log *zap.SugaredLogger) *Feeds {
	return livesync.New(livesync.Config[models.Incident, Card]{
		Route:  route,
		Render: RenderCard,
		Containers: map[string]string{
			string(models.ZoneNorth): EmptyNorth,
			string(models.ZoneSouth): EmptySouth,
		},
	}, log)
}

// anything not explicitly north is shown in the south feed
func route(inc models.Incident) string {
	if inc.Zone == models.ZoneNorth {
		return string(models.ZoneNorth)
	}
	return string(models.ZoneSouth)
}

// RenderCard builds the card for an incident
func RenderCard(id string, inc models.Incident) Card {
	return Card{
		ID:       id,
		Title:    inc.RobberyType,
		Band:     inc.Band,
		Color:    SafeColor(inc.Color),
		PlayerID: inc.PlayerID,
		Zone:     inc.Zone,
		Status:   inc.Status.Normalize(),
		Time:     cardTime(inc),
	}
}

// SafeColor returns c when it is a #RRGGBB color and DefaultColor otherwise
func SafeColor(c string) string {
	if validate.Var(c, "len=7,hexcolor") != nil {
		return DefaultColor
	}
	return c
}

func cardTime(inc models.Incident) string {
	switch {
	case inc.CreatedAt != nil && !inc.CreatedAt.IsZero():
		return clock(*inc.CreatedAt)
	case !inc.Timestamp.IsZero():
		return clock(inc.Timestamp)
	default:
		return "--:--"
	}
}

func clock(t time.Time) string {
	return t.Local().Format("15:04")
}
