package lanechange

import "github.com/sirupsen/logrus"

var log = logrus.WithField("module", "lanechange")
