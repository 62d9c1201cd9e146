package zones

import "time"

const (
	SeasonKharif = "Kharif (Monsoon)"
	SeasonRabi   = "Rabi (Winter)"
	SeasonZaid   = "Zaid (Summer)"
)

// SeasonFor returns the Indian cropping season for t's month.
func SeasonFor(t time.Time) string {
	switch m := t.Month(); {
	case m >= time.June && m <= time.October:
		return SeasonKharif
	case m >= time.April && m <= time.May:
		return SeasonZaid
	default:
		return SeasonRabi
	}
}
