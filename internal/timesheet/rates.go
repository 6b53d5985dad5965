package timesheet

// ResolveAmounts computes the frozen monetary snapshot for an entry. A nil
// rate leaves the corresponding amount nil (unbilled); the margin exists only
// when both amounts do.
func ResolveAmounts(hours float64, consultantRate, clientRate *float64) AmountSnapshot {
	var snap AmountSnapshot

	if consultantRate != nil {
		rate := *consultantRate
		amount := hours * rate
		snap.ConsultantRate = &rate
		snap.ConsultantAmount = &amount
	}
	if clientRate != nil {
		rate := *clientRate
		amount := hours * rate
		snap.ClientRate = &rate
		snap.ClientAmount = &amount
	}
	if snap.ClientAmount != nil && snap.ConsultantAmount != nil {
		margin := *snap.ClientAmount - *snap.ConsultantAmount
		snap.Margin = &margin
	}

	return snap
}
