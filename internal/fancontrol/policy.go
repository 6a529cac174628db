package fancontrol

// SpeedLevelForTemp maps a zone temperature to a target fan level. Band upper
// bounds are inclusive; the policy never returns 0, which is reserved for
// explicit off/self-test states.
func SpeedLevelForTemp(tempC float64) int {
	switch {
	case tempC <= 40:
		return 1
	case tempC <= 50:
		return 2
	case tempC <= 60:
		return 3
	default:
		return 4
	}
}
