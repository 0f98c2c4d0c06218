package services

import "spinwheel-backend/internal/models"

// Broadcaster pushes committed events to live observers.
type Broadcaster interface {
	BroadcastSpinResult(result *models.SpinResult)
	BroadcastPoolUpdate(pool models.PoolInfo)
}

type noopBroadcaster struct{}

func (noopBroadcaster) BroadcastSpinResult(*models.SpinResult) {}
func (noopBroadcaster) BroadcastPoolUpdate(models.PoolInfo)    {}
