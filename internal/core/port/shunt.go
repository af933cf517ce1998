package port

import "battfleet2mqtt/pkg/vedirect"

// ShuntReader yields the latest non-stale shunt measurement, or nil when
// nothing trustworthy is available this cycle.
type ShuntReader interface {
	Update() *vedirect.ShuntData
	Close() error
}
