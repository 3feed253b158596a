// internal/engine/alert.go
package engine

import (
	"context"
	"log/slog"

	"github.com/solatis/killwatch/internal/types"
)

// Alerter is the external dispatch collaborator notified of every match.
// Delivery is at-least-once, keyed by (profile id, killmail id); consumers
// must deduplicate idempotently.
type Alerter interface {
	Notify(ctx context.Context, profileID types.ProfileID, e *types.Event)
}

// LogAlerter is the default collaborator: it logs matches instead of
// dispatching them. Real alert transports replace it at wiring time.
type LogAlerter struct {
	Logger *slog.Logger
}

// Notify implements Alerter.
func (a *LogAlerter) Notify(_ context.Context, profileID types.ProfileID, e *types.Event) {
	a.Logger.Info("profile matched",
		"profile_id", string(profileID),
		"killmail_id", e.KillmailID,
		"system", e.SolarSystemName,
		"victim_ship", e.Victim.ShipName,
		"total_value", e.TotalValue,
	)
}
