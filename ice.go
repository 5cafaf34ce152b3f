package ice

import (
	"os"
	"strings"

	"github.com/lanikai/ice/internal/logging"
)

// Package-scoped logger, tagged "ice" the same way every subsystem of the
// teacher codebase derives a tagged child from the shared DefaultLogger.
var log = logging.DefaultLogger.WithTag("ice")

func init() {
	for _, tag := range strings.Split(os.Getenv("TRACE"), ",") {
		if tag == "ice" {
			log = log.WithDefaultLevel(logging.Debug)
			break
		}
	}
}
