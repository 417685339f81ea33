package models

import "time"

// DeliveryPartner as consumed by the assignment engine: the engine only
// reads location/availability and flips the busy flag with a conditional
// update, it never owns the full lifecycle.
type DeliveryPartner struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Approved bool      `json:"approved"`
	Online   bool      `json:"online"`
	Busy     bool      `json:"busy"`
	Lat      *float64  `json:"lat,omitempty"`
	Lng      *float64  `json:"lng,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *DeliveryPartner) HasLocation() bool {
	return p.Lat != nil && p.Lng != nil
}
