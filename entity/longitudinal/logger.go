package longitudinal

import "github.com/sirupsen/logrus"

var log = logrus.WithField("module", "longitudinal")
