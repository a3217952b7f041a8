package clocksync

import "github.com/pkg/errors"

var errNoSamples = errors.New("clocksync: every round timed out or failed validation")
