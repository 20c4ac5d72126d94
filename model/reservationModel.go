// model/reservation.go
package model

import "time"

type ReservationStatus string

const (
	ReservationWaiting   ReservationStatus = "WAITING"
	ReservationAvailable ReservationStatus = "AVAILABLE"
	ReservationFulfilled ReservationStatus = "FULFILLED"
	ReservationExpired   ReservationStatus = "EXPIRED"
	ReservationCancelled ReservationStatus = "CANCELLED"
)

const (
	// ReservationValidDays is how long a waitlist spot is held.
	ReservationValidDays = 30
	// PickupWindowDays replaces the expiry once a copy becomes available.
	PickupWindowDays = 3
	// MaxReservationsPerUser caps concurrent active reservations.
	MaxReservationsPerUser = 5
)

type Reservation struct {
	ID               int64             `json:"id"`
	UserID           int64             `json:"user_id"`
	BookID           int64             `json:"book_id"`
	ReservationDate  time.Time         `json:"reservation_date"`
	ExpiryDate       time.Time         `json:"expiry_date"`
	NotificationDate *time.Time        `json:"notification_date,omitempty"`
	IsActive         bool              `json:"is_active"`
	QueuePosition    int               `json:"queue_position"`
	Status           ReservationStatus `json:"status"`
}
