package xxdb

import (
	"os"

	"github.com/sirupsen/logrus"
)

// newLogger builds the stderr logger used when Options.Logger is nil. level
// has already been checked by Options.validate.
func newLogger(level string) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05 2006/01/02",
	})
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
	return l
}
