package radio

import (
	"context"

	"github.com/MRamiBalles/ScavengerSensoryHunt/server/internal/platform/logger"
)

// LogTransmitter only logs frames. Used when the badge has no radio link.
type LogTransmitter struct {
	Logger *logger.Logger
}

func (t LogTransmitter) Transmit(_ context.Context, frame []byte) error {
	t.Logger.Debug("Sending radio frame: %s", frame)
	return nil
}
