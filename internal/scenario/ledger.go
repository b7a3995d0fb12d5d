package scenario

// Ledger counts the day's vaccinations and derives the vial and
// appointment figures reported with every vaccination event.
type Ledger struct {
	Total        int
	DosesPerVial int
	Scheduled    int
	LastApt      string
}

// VialsOpened is 0 before the first dose, otherwise one more than the
// number of full vials used.
func (l Ledger) VialsOpened() int {
	if l.Total == 0 {
		return 0
	}
	return 1 + l.Total/l.DosesPerVial
}

// DosesLeft is what remains in the vial currently open.
func (l Ledger) DosesLeft() int {
	return l.DosesPerVial - l.Total%l.DosesPerVial
}

// AppointmentsRemaining may go negative when walk-ins exceed the schedule.
func (l Ledger) AppointmentsRemaining() int {
	return l.Scheduled - l.Total
}

// Data formats the vaccination_data object for an event reporting n new
// vaccinations.
func (l Ledger) Data(n int) map[string]interface{} {
	return map[string]interface{}{
		"new_vaccinations":           n,
		"total_vaccinations":         l.Total,
		"vials_opened":               l.VialsOpened(),
		"doses_left_in_current_vial": l.DosesLeft(),
		"appointments_remaining":     l.AppointmentsRemaining(),
		"last_apt":                   l.LastApt,
	}
}
