package preemption

import (
	"gopkg.in/guregu/null.v4"
)

type Status struct {
	Id        string      `json:"id"`
	Locked    bool        `json:"locked"`
	Holder    null.String `json:"holder"`
	HeldSince null.Time   `json:"held_since"`
}

// Status is a racy snapshot for diagnostics: the holder may release between
// the two loads.
func (c *Control) Status() Status {
	status := Status{
		Id:     c.id.String(),
		Locked: c.lock.Locked(),
	}

	if guard := c.holder.Load(); guard != nil {
		status.Holder = null.StringFrom(guard.id.String())
		status.HeldSince = null.TimeFrom(guard.acquired)
	}

	return status
}
