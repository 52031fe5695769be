package equilibrium

import "github.com/sirupsen/logrus"

var log = logrus.WithField("module", "equilibrium")
