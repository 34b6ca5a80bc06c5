package model

import "testing"

func TestValidEventType(t *testing.T) {
	valid := []string{
		EventOrderCreated, EventRunnerAssigned, EventRunnerEnRoute, EventRunnerArrived,
		EventOTPVerified, EventHandoffCompleted, EventOrderCancelled,
		EventRefundProcessing, EventRefundSucceeded, EventRefundFailed,
	}
	for _, et := range valid {
		if !ValidEventType(et) {
			t.Errorf("ValidEventType(%q) = false, want true", et)
		}
	}

	invalid := []string{"", "ORDER_CREATED", "order-created", "runner_left", "otp_generated"}
	for _, et := range invalid {
		if ValidEventType(et) {
			t.Errorf("ValidEventType(%q) = true, want false", et)
		}
	}
}

func TestSystemEventType(t *testing.T) {
	system := []string{
		EventOrderCreated, EventRunnerAssigned, EventOTPVerified, EventHandoffCompleted,
		EventOrderCancelled, EventRefundProcessing, EventRefundSucceeded, EventRefundFailed,
	}
	for _, et := range system {
		if !SystemEventType(et) {
			t.Errorf("SystemEventType(%q) = false, want true", et)
		}
	}

	for _, et := range []string{EventRunnerEnRoute, EventRunnerArrived, ""} {
		if SystemEventType(et) {
			t.Errorf("SystemEventType(%q) = true, want false", et)
		}
	}
}
