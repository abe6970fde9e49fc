package raffle

import "time"

// UpkeepConditions are the four predicates that together gate PerformUpkeep.
type UpkeepConditions struct {
	TimePassed bool
	IsOpen     bool
	HasBalance bool
	HasPlayers bool
}

func (c UpkeepConditions) Needed() bool {
	return c.TimePassed && c.IsOpen && c.HasBalance && c.HasPlayers
}

func (r Round) upkeepConditions(interval time.Duration, now time.Time) UpkeepConditions {
	return UpkeepConditions{
		TimePassed: now.Sub(r.LastTimestamp) >= interval,
		IsOpen:     r.State == Open,
		HasBalance: r.Pool > 0,
		HasPlayers: len(r.Players) > 0,
	}
}

// UpkeepConditions evaluates each predicate at now without side effects.
func (r *Raffle) UpkeepConditions(now time.Time) UpkeepConditions {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.round.upkeepConditions(r.cfg.Interval, now)
}

// IsUpkeepNeeded reports whether the round is ready to be resolved at now.
func (r *Raffle) IsUpkeepNeeded(now time.Time) bool {
	return r.UpkeepConditions(now).Needed()
}

// CheckUpkeep is the automation check against the raffle clock. checkData is
// ignored and performData is always empty.
func (r *Raffle) CheckUpkeep(checkData []byte) (upkeepNeeded bool, performData []byte) {
	return r.IsUpkeepNeeded(r.now()), []byte{}
}
