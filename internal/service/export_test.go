package service

import "time"

// SetClock replaces the time source.
func (s *RideService) SetClock(now func() time.Time) { s.now = now }
