package alertview

import (
	"log/slog"
	"time"
)

// LogBeeper is the headless Beeper: the engine has no audio device, so the
// cue is logged and the browser shell plays the real tone from the published
// snapshot.
type LogBeeper struct {
	Logger *slog.Logger
}

func (b *LogBeeper) Beep(frequencyHz float64, duration time.Duration) {
	logger := b.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug("alert tone", "frequency_hz", frequencyHz, "duration", duration)
}

func (b *LogBeeper) Close() error { return nil }
