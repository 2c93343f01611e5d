package callident

import (
	"github.com/sirupsen/logrus"

	"github.com/maxgio92/callident/internal/logfields"
)

var log logrus.FieldLogger = logrus.WithField(logfields.LogSubsys, "callident")
