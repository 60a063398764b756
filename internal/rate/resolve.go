package rate

// Resolve maps a detected rate to the rate the device should be set to.
//
// With fixed family rates enabled every member of a family collapses onto the
// configured rate for that family. An unset (zero) family rate falls back to
// the family's highest member when PreferHigherFamily is on, otherwise the
// detected rate passes through. Closest-supported fallback happens later, once
// the target device is known.
func Resolve(detected Hz, p Policy) Hz {
	if !p.UseFixedFamilyRates {
		return detected
	}

	var fixed Hz
	switch detected.Family() {
	case Family44_1:
		fixed = p.Fixed44_1FamilyRate
	case Family48:
		fixed = p.Fixed48FamilyRate
	default:
		return detected
	}

	if fixed.IsCanonical() {
		return fixed
	}
	if fixed == 0 && p.PreferHigherFamily {
		members := detected.Family().Members()
		return members[len(members)-1]
	}
	return detected
}

// ClosestSupported picks the rate to request from a device that supports the
// given ascending set. ok is false only when supported is empty.
//
// Order of preference: the exact rate; the lowest supported family member at
// or above target; the family member one octave below target; the globally
// nearest rate, ties going to the lower one.
func ClosestSupported(target Hz, supported []Hz) (Hz, bool) {
	if len(supported) == 0 {
		return 0, false
	}

	has := func(h Hz) bool {
		for _, s := range supported {
			if s == h {
				return true
			}
		}
		return false
	}

	if has(target) {
		return target, true
	}

	fam := target.Family()
	if fam != FamilyUnknown {
		for _, m := range fam.Members() {
			if m >= target && has(m) {
				return m, true
			}
		}
		if half := target / 2; half.Family() == fam && has(half) {
			return half, true
		}
	}

	best := supported[0]
	bestDist := distance(best, target)
	for _, s := range supported[1:] {
		d := distance(s, target)
		if d < bestDist || (d == bestDist && s < best) {
			best, bestDist = s, d
		}
	}
	return best, true
}

func distance(a, b Hz) Hz {
	if a > b {
		return a - b
	}
	return b - a
}
