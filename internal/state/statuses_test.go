package state

import (
	"testing"
)

func TestExecutionStatus_String(t *testing.T) {
	tests := []struct {
		name     string
		status   ExecutionStatus
		expected string
	}{
		{
			name:     "Success status",
			status:   StatusSuccess,
			expected: "success",
		},
		{
			name:     "Failed status",
			status:   StatusFailed,
			expected: "failed",
		},
		{
			name:     "Error status",
			status:   StatusError,
			expected: "error",
		},
		{
			name:     "Skipped status",
			status:   StatusSkipped,
			expected: "skipped",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.status.String()
			if result != tt.expected {
				t.Errorf("String() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestIsValid(t *testing.T) {
	for _, s := range AllStatuses {
		if !IsValid(s) {
			t.Errorf("IsValid(%s) = false, want true", s)
		}
	}
	if IsValid(ExecutionStatus("running")) {
		t.Error("IsValid(running) = true, want false")
	}
}

func TestExecutionStatus_CountsAsFailure(t *testing.T) {
	tests := []struct {
		name     string
		status   ExecutionStatus
		expected bool
	}{
		{name: "Failed counts", status: StatusFailed, expected: true},
		{name: "Error counts", status: StatusError, expected: true},
		{name: "Success does not count", status: StatusSuccess, expected: false},
		{name: "Skipped does not count", status: StatusSkipped, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := tt.status.CountsAsFailure(); result != tt.expected {
				t.Errorf("CountsAsFailure() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestExecutionStatus_Recordable(t *testing.T) {
	for _, s := range []ExecutionStatus{StatusSuccess, StatusFailed, StatusError} {
		if !s.Recordable() {
			t.Errorf("Recordable(%s) = false, want true", s)
		}
	}
	if StatusSkipped.Recordable() {
		t.Error("Recordable(skipped) = true, want false")
	}
}
