// Package incubation holds the per-STI maximum incubation windows (C6
// in spec.md §4.6) and the rolling-window arithmetic the Chain
// Propagator (C8) applies at each hop.
package incubation

const day = 24 * 60 * 60 * 1000 // ms

// RetentionHorizonDays is the outer bound past which no record is kept
// or considered, per spec.md §4.6/§4.11.
const RetentionHorizonDays = 180

// MaxDays is the authoritative per-STI maximum incubation period, in
// days, from spec.md §4.6.
var MaxDays = map[string]int{
	"HIV":        30,
	"Syphilis":   90,
	"Gonorrhea":  14,
	"Chlamydia":  21,
	"HPV":        180,
	"Herpes":     21,
	"Other":      30,
}

// defaultDays is used for an STI code absent from MaxDays, to avoid
// silently dropping contacts whenever a new code is introduced client
// side before this map is updated.
const defaultDays = 30

// EffectiveDays returns the max incubation across every reported STI
// code, per "the effective incubation for a multi-STI report is the
// max across reported STIs".
func EffectiveDays(stiTypes []string) int {
	best := defaultDays
	found := false
	for _, sti := range stiTypes {
		d, ok := MaxDays[sti]
		if !ok {
			d = defaultDays
		}
		if !found || d > best {
			best = d
			found = true
		}
	}
	return best
}

// Window computes the rolling per-hop exposure window
// [max(t-d·day, retentionFloor), min(t+d·day, now)] from spec.md §4.6.
// All timestamps are ms epoch.
func Window(interactionDate int64, effectiveDays int, now int64) (start, end int64) {
	d := int64(effectiveDays) * day
	retentionFloor := now - int64(RetentionHorizonDays)*day

	start = interactionDate - d
	if start < retentionFloor {
		start = retentionFloor
	}
	end = interactionDate + d
	if end > now {
		end = now
	}
	return start, end
}
