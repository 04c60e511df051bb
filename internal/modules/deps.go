// Package modules contains the built-in command modules.
package modules

import (
	"log/slog"
	"time"

	"github.com/edgard/ion/internal/gemini"
)

// Deps provides dependencies for the built-in modules.
type Deps struct {
	Logger  *slog.Logger
	Version string
	// Gemini enables the ask module when set.
	Gemini gemini.Client
	Clock  func() time.Time
}
