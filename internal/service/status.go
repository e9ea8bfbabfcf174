package service

import "weigh_station/internal/models"

// StatusService is a read-only view over the serial reader. The reader owns
// the state; this layer only exists so handlers depend on the service facade.
type StatusService struct {
	scale ScaleStatusSource
}

func NewStatusService(scale ScaleStatusSource) *StatusService {
	return &StatusService{scale: scale}
}

// Scale returns the current link state, the latest sample and the stability
// verdict in one consistent snapshot.
func (s *StatusService) Scale() models.ScaleStatus {
	return s.scale.Status()
}
