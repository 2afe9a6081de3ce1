package shellmind

import (
	"os"

	"github.com/sirupsen/logrus"
)

// NewLogger builds a logrus.Logger configured from LOG_LEVEL (§6, §10.1),
// writing to stderr so stdout stays free for the terminal renderer
// (§10.3). An unrecognized level falls back to Info rather than
// erroring, matching coloredlogs' permissiveness in the original source.
func NewLogger(level string) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	log.SetLevel(parsed)
	return log
}
