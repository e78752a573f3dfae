package store

import "time"

// Forwarding methods so the Store satisfies the engine's DataStore
// interface without the engine reaching into individual repositories.

// StudyMinutesByDay forwards to the session repository.
func (s *Store) StudyMinutesByDay(start, end time.Time, category string) (map[string]float64, error) {
	return s.Sessions.StudyMinutesByDay(start, end, category)
}

// EarliestSessionDate forwards to the session repository.
func (s *Store) EarliestSessionDate() (*time.Time, error) {
	return s.Sessions.EarliestSessionDate()
}

// HealthByDay forwards to the health repository.
func (s *Store) HealthByDay(start, end time.Time) ([]HealthDay, error) {
	return s.Health.ByDay(start, end)
}

// ActivitiesBetween forwards to the activity repository.
func (s *Store) ActivitiesBetween(start, end time.Time) ([]Activity, error) {
	return s.Activities.Between(start, end)
}

// FactorNames forwards to the factor repository.
func (s *Store) FactorNames() ([]string, error) {
	return s.Factors.Names()
}

// FactorLog forwards to the factor repository.
func (s *Store) FactorLog(name string) ([]FactorOverride, error) {
	return s.Factors.Log(name)
}
