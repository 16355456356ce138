package store

import (
	"strconv"
	"time"
)

// Step identifies where a chat stands in the booking dialogue.
// An absent session (or empty step) means the chat is idle.
type Step string

const (
	StepAwaitRouteName    Step = "await_route_name"
	StepAwaitDate         Step = "await_date"
	StepAwaitTime         Step = "await_time"
	StepAwaitBusSelection Step = "await_bus_selection"
	StepAwaitConfirmation Step = "await_confirmation"
)

// UserMeta captures who is driving the conversation.
type UserMeta struct {
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
}

// BookingDraft accumulates the answers collected during a dialogue.
// Pointer fields distinguish "not provided" from legitimate zero values
// (the first age group has index 0).
type BookingDraft struct {
	RouteName         string   `json:"route_name,omitempty"`
	Date              string   `json:"date,omitempty"`
	Time              string   `json:"time,omitempty"`
	AgeGroupIndex     *int     `json:"age_group_num,omitempty"`
	TrafficLevelIndex *int     `json:"traffic_level_num,omitempty"`
	BusTypeNumber     *int     `json:"bus_type_num,omitempty"`
	DistanceKm        *float64 `json:"distance_km,omitempty"`
	PredictedFare     *float64 `json:"predicted_fare,omitempty"`
	SelectedBusID     string   `json:"selected_bus_id,omitempty"`
}

// Session is the dialogue state of one chat.
type Session struct {
	Step Step         `json:"step"`
	Data BookingDraft `json:"data"`
	User UserMeta     `json:"user,omitempty"`
}

// Booking is one confirmed reservation. The record is append-only.
type Booking struct {
	ChatID        string    `json:"chat_id"`
	BusID         string    `json:"bus_id"`
	RouteName     string    `json:"route_name"`
	Date          string    `json:"travel_date"`
	Time          string    `json:"departure_time"`
	AgeGroup      string    `json:"age_group"`
	TrafficLevel  string    `json:"traffic_level"`
	DistanceKm    float64   `json:"distance_km"`
	PredictedFare float64   `json:"predicted_fare"`
	CreatedAt     time.Time `json:"created_at"`
}

// ChatKey converts a Telegram chat id into the string key the stores use.
func ChatKey(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}
