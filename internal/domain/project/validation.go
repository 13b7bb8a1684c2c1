package project

import (
	"strings"
	"time"
)

func validate(p Project) error {
	if strings.TrimSpace(p.piLastName) == "" {
		return ErrInvalidProject.New("project opened %s has no PI name", p.openDate.Format(time.DateOnly))
	}
	if p.closeDate != nil && p.closeDate.Before(p.openDate) {
		return ErrDateRange.New("project %s closes %s before it opens",
			p, p.closeDate.Format(time.DateOnly))
	}

	var hasStorage, hasSpeedCode bool
	for _, upd := range p.updates {
		hasStorage = hasStorage || upd.Storage != nil
		hasSpeedCode = hasSpeedCode || setsSpeedCode(upd)
	}
	if !hasStorage {
		return ErrInvalidProject.New("project %s is missing required info storage", p)
	}
	if !hasSpeedCode {
		return ErrInvalidProject.New("project %s is missing required info speed_code", p)
	}
	return nil
}

func setsSpeedCode(u Update) bool { return u.SpeedCode != nil && *u.SpeedCode != "" }
