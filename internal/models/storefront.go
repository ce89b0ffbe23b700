package models

import "time"

// Collection names shared by every store driver.
const (
	CollectionSettings    = "adminSettings"
	CollectionMenuItems   = "menuItems"
	CollectionPreBookings = "preBookings"
	CollectionEventOrders = "eventOrders"
	CollectionFeedbacks   = "feedbacks"

	SettingsGeneralID = "general"
)

// MenuItem is a dish listed on the public menu.
type MenuItem struct {
	ID    string  `json:"id"`
	Name  string  `json:"name" form:"name" binding:"required,max=80"`
	Price float64 `json:"price" form:"price" binding:"gte=0"`
	Emoji string  `json:"emoji" form:"emoji"`
}

// Settings is the single adminSettings/general document.
type Settings struct {
	TeaserText string `json:"teaserText" form:"teaserText"`
}

// PreBooking is an express order for pickup.
type PreBooking struct {
	ID        string         `json:"id"`
	Name      string         `json:"name" validate:"required"`
	Contact   string         `json:"contact" validate:"required"`
	Message   string         `json:"message,omitempty"`
	Items     map[string]int `json:"items,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// EventOrder is a catering inquiry.
type EventOrder struct {
	ID           string         `json:"id"`
	Name         string         `json:"name" validate:"required"`
	Contact      string         `json:"contact" validate:"required"`
	Address      string         `json:"address,omitempty"`
	Date         string         `json:"date" validate:"required"`
	Time         string         `json:"time,omitempty"`
	Type         string         `json:"type" validate:"required"`
	CallSchedule string         `json:"callSchedule,omitempty"`
	Items        map[string]int `json:"items,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
}

// Feedback is a star rating with a comment.
type Feedback struct {
	ID        string    `json:"id"`
	Rating    int       `json:"rating" validate:"min=1,max=5"`
	Comment   string    `json:"comment" validate:"required"`
	Name      string    `json:"name"`
	Timestamp time.Time `json:"timestamp"`
}
