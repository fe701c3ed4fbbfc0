package motion

import "time"

// AlertPolicy decides whether a broker payload observed after a motion event
// warrants an SMS alert. The trigger payload always alerts, the suppress
// payload never does, and anything else alerts only during the night window.
type AlertPolicy struct {
	TriggerPayload  string
	SuppressPayload string
	// NightStart and NightEnd are hours of day bounding the night window,
	// start inclusive, end exclusive. The window may wrap around midnight
	// (e.g. 22 to 6). Equal values disable the window.
	NightStart int
	NightEnd   int
}

// DefaultPolicy alerts on payload "1" at any hour and between 22:00 and 06:00
// for anything but "3".
var DefaultPolicy = AlertPolicy{
	TriggerPayload:  "1",
	SuppressPayload: "3",
	NightStart:      22,
	NightEnd:        6,
}

// ShouldAlert reports whether an alert should be sent for the given payload
// at the given time.
func (p AlertPolicy) ShouldAlert(payload string, now time.Time) bool {
	switch payload {
	case p.TriggerPayload:
		return true
	case p.SuppressPayload:
		return false
	}
	return p.night(now.Hour())
}

func (p AlertPolicy) night(hour int) bool {
	switch {
	case p.NightStart == p.NightEnd:
		return false
	case p.NightStart < p.NightEnd:
		return hour >= p.NightStart && hour < p.NightEnd
	default:
		return hour >= p.NightStart || hour < p.NightEnd
	}
}
