package game

// SetIDGenerator replaces the game id generator.
func (s *Service) SetIDGenerator(newID func() string) {
	s.newID = newID
}
