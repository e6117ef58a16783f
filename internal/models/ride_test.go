package models

import (
	"testing"
)

func TestRide_CanTransitionTo(t *testing.T) {
	tests := []struct {
		name string
		from string
		to   string
		want bool
	}{
		{"Request to accepted", RideStatusRequested, RideStatusAccepted, true},
		{"Accepted to arrived", RideStatusAccepted, RideStatusArrived, true},
		{"Arrived to started", RideStatusArrived, RideStatusStarted, true},
		{"Accepted straight to started", RideStatusAccepted, RideStatusStarted, true},
		{"Started to completed", RideStatusStarted, RideStatusCompleted, true},
		{"Requested to cancelled", RideStatusRequested, RideStatusCancelled, true},
		{"Started to cancelled", RideStatusStarted, RideStatusCancelled, true},
		{"No skipping to completed", RideStatusRequested, RideStatusCompleted, false},
		{"No going backwards", RideStatusStarted, RideStatusAccepted, false},
		{"Completed is terminal", RideStatusCompleted, RideStatusCancelled, false},
		{"Cancelled is terminal", RideStatusCancelled, RideStatusAccepted, false},
		{"Cancelled twice", RideStatusCancelled, RideStatusCancelled, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Ride{Status: tt.from}
			if got := r.CanTransitionTo(tt.to); got != tt.want {
				t.Errorf("CanTransitionTo(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestStatusMessageType(t *testing.T) {
	tests := []struct {
		status string
		want   MessageType
	}{
		{RideStatusRequested, MessageTypeRideRequest},
		{RideStatusAccepted, MessageTypeRideAccepted},
		{RideStatusArrived, MessageTypePickupArrived},
		{RideStatusStarted, MessageTypeRideStarted},
		{RideStatusCompleted, MessageTypeRideCompleted},
		{RideStatusCancelled, MessageTypeRideCancelled},
		{"teleported", MessageTypeRideStatus},
	}

	for _, tt := range tests {
		if got := StatusMessageType(tt.status); got != tt.want {
			t.Errorf("StatusMessageType(%s) = %s, want %s", tt.status, got, tt.want)
		}
	}
}
