package jobcard

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codigix/nobal-casting-sub005/internal/shared"
)

func TestLegalTransitions(t *testing.T) {
	cases := []struct {
		from, to Status
		ok       bool
	}{
		{StatusDraft, StatusReady, true},
		{StatusDraft, StatusInProgress, true},
		{StatusReady, StatusSentToVendor, true},
		{StatusSentToVendor, StatusPartiallyReceived, true},
		{StatusPartiallyReceived, StatusReceived, true},
		{StatusReceived, StatusCompleted, true},
		{StatusInProgress, StatusCompleted, true},
		{StatusHold, StatusInProgress, true},
		{StatusCompleted, StatusCompleted, true},
		{StatusCompleted, StatusInProgress, false},
		{StatusCancelled, StatusReady, false},
		{StatusInProgress, StatusReady, false},
		{StatusReceived, StatusSentToVendor, false},
	}
	for _, tc := range cases {
		require.Equal(t, tc.ok, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestValidateTransitionError(t *testing.T) {
	err := ValidateTransition(StatusCompleted, StatusInProgress)
	require.Error(t, err)

	var stErr *StateTransitionError
	require.True(t, errors.As(err, &stErr))
	require.Equal(t, StatusCompleted, stErr.From)
	require.Equal(t, StatusInProgress, stErr.To)
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestNormalizeStatus(t *testing.T) {
	require.Equal(t, StatusInProgress, NormalizeStatus("In Progress"))
	require.Equal(t, StatusInProgress, NormalizeStatus("in_progress"))
	require.Equal(t, StatusSentToVendor, NormalizeStatus(" Sent To Vendor "))
}
