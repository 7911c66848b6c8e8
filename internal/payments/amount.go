package payments

// AmountWithinTolerance accepts a received amount down to 99% of the
// expected one, covering provider-side rounding and fee deductions. Integer
// math so there is no float boundary wobble.
func AmountWithinTolerance(received, expected int64) bool {
	return received*100 >= expected*99
}
