package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diogenes-ai-code/ticketcore/internal/errors"
	"github.com/diogenes-ai-code/ticketcore/internal/models"
)

func TestInitialStatus(t *testing.T) {
	tests := []struct {
		typ     models.TicketType
		initial string
	}{
		{models.TypeTask, "backlog"},
		{models.TypeBug, "triage"},
		{models.TypeFeature, "proposed"},
		{models.TypeDecision, "open"},
	}
	for _, tt := range tests {
		got, err := InitialStatus(tt.typ)
		require.NoError(t, err)
		assert.Equal(t, tt.initial, got)
	}
}

func TestInitialStatus_UnknownType(t *testing.T) {
	_, err := InitialStatus("epic")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.KindValidation))
}

func TestValidateTransition_AllowsDeclaredEdges(t *testing.T) {
	tests := []struct {
		typ      models.TicketType
		from, to string
	}{
		{models.TypeTask, "backlog", "in_progress"},
		{models.TypeTask, "backlog", "cancelled"},
		{models.TypeTask, "in_progress", "done"},
		{models.TypeBug, "triage", "confirmed"},
		{models.TypeBug, "confirmed", "in_progress"},
		{models.TypeBug, "confirmed", "wont_fix"},
		{models.TypeFeature, "proposed", "approved"},
		{models.TypeFeature, "in_progress", "shipped"},
		{models.TypeDecision, "open", "decided"},
		{models.TypeDecision, "deferred", "open"}, // reopen
	}
	for _, tt := range tests {
		assert.NoError(t, ValidateTransition(tt.typ, tt.from, tt.to),
			"%s: %s -> %s", tt.typ, tt.from, tt.to)
	}
}

func TestValidateTransition_RejectsSkipAhead(t *testing.T) {
	tests := []struct {
		typ      models.TicketType
		from, to string
	}{
		{models.TypeTask, "backlog", "done"},
		{models.TypeBug, "triage", "in_progress"},
		{models.TypeBug, "triage", "resolved"},
		{models.TypeFeature, "proposed", "shipped"},
	}
	for _, tt := range tests {
		err := ValidateTransition(tt.typ, tt.from, tt.to)
		require.Error(t, err, "%s: %s -> %s", tt.typ, tt.from, tt.to)
		assert.True(t, errors.Is(err, errors.KindInvalidTransition))
	}
}

func TestValidateTransition_RejectsSelfEdge(t *testing.T) {
	err := ValidateTransition(models.TypeTask, "backlog", "backlog")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.KindInvalidTransition))
}

func TestValidateTransition_RejectsUnknownStatus(t *testing.T) {
	err := ValidateTransition(models.TypeTask, "limbo", "done")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.KindInvalidTransition))
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, IsTerminal(models.TypeTask, "done"))
	assert.True(t, IsTerminal(models.TypeTask, "cancelled"))
	assert.True(t, IsTerminal(models.TypeDecision, "deferred"))
	assert.False(t, IsTerminal(models.TypeTask, "backlog"))
	assert.False(t, IsTerminal(models.TypeBug, "in_progress"))
	assert.False(t, IsTerminal("epic", "done"))
}

func TestCloseTarget_PreferenceOrder(t *testing.T) {
	tests := []struct {
		typ    models.TicketType
		from   string
		target string
	}{
		// done is preferred over cancelled when both are reachable
		{models.TypeTask, "in_progress", "done"},
		// only cancelled is reachable from backlog
		{models.TypeTask, "backlog", "cancelled"},
		{models.TypeBug, "in_progress", "resolved"},
		{models.TypeBug, "triage", "wont_fix"},
		{models.TypeFeature, "in_progress", "shipped"},
		{models.TypeFeature, "proposed", "rejected"},
		{models.TypeDecision, "open", "decided"},
	}
	for _, tt := range tests {
		got, err := CloseTarget(tt.typ, tt.from)
		require.NoError(t, err, "%s from %s", tt.typ, tt.from)
		assert.Equal(t, tt.target, got, "%s from %s", tt.typ, tt.from)
	}
}

func TestCloseTarget_AlreadyTerminal(t *testing.T) {
	_, err := CloseTarget(models.TypeTask, "done")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.KindInvalidTransition))
}

func TestStatuses(t *testing.T) {
	got, err := Statuses(models.TypeBug)
	require.NoError(t, err)
	assert.Equal(t, []string{"triage", "confirmed", "in_progress", "resolved", "wont_fix"}, got)
}

func TestAllStatuses_UnionIsDeduplicated(t *testing.T) {
	all := AllStatuses()
	seen := map[string]int{}
	for _, s := range all {
		seen[s]++
	}
	for s, n := range seen {
		assert.Equal(t, 1, n, "status %q appears %d times", s, n)
	}
	// in_progress is shared by task, bug, and feature
	assert.Contains(t, all, "in_progress")
	assert.Contains(t, all, "deferred")
}

func TestTransitions(t *testing.T) {
	got, err := Transitions(models.TypeTask, "backlog")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"in_progress", "cancelled"}, got)

	got, err = Transitions(models.TypeTask, "done")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestClosePath(t *testing.T) {
	// Single hop
	assert.Equal(t, []string{"done"}, ClosePath(models.TypeTask, "in_progress"))
	// Multi hop: backlog prefers the direct cancelled edge over walking
	// through in_progress
	assert.Equal(t, []string{"cancelled"}, ClosePath(models.TypeTask, "backlog"))
	assert.Equal(t, []string{"wont_fix"}, ClosePath(models.TypeBug, "triage"))
	// Already terminal
	assert.Nil(t, ClosePath(models.TypeTask, "done"))
	// Unknown type
	assert.Nil(t, ClosePath("epic", "open"))
}
