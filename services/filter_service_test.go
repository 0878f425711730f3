package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collabmatch_sync/models"
)

func strSlice(values ...string) *[]string { return &values }

func strPtr(v string) *string { return &v }

func intPtr(v int) *int { return &v }

func boolPtr(v bool) *bool { return &v }

func TestUpdateFiltersMergesOnlySetFields(t *testing.T) {
	fs := NewFilterService()
	fs.UpdateFilters(models.FilterUpdate{Niches: strSlice("gaming"), VerifiedOnly: boolPtr(true)})

	state := fs.UpdateFilters(models.FilterUpdate{Location: strPtr("berlin"), RadiusKm: intPtr(50)})
	assert.Equal(t, []string{"gaming"}, state.Niches)
	assert.True(t, state.VerifiedOnly)
	assert.Equal(t, "berlin", state.Location)
	assert.Equal(t, 50, state.RadiusKm)
}

func TestToggleBackReproducesIdenticalKey(t *testing.T) {
	fs := NewFilterService()

	fs.UpdateFilters(models.FilterUpdate{Niches: strSlice("gaming")})
	gamingKey := fs.SuggestionsKey(1, 20)

	fs.UpdateFilters(models.FilterUpdate{Niches: strSlice("tech")})
	techKey := fs.SuggestionsKey(1, 20)
	require.NotEqual(t, gamingKey, techKey)

	fs.UpdateFilters(models.FilterUpdate{Niches: strSlice("gaming")})
	assert.Equal(t, gamingKey, fs.SuggestionsKey(1, 20))
}

func TestActiveFilterCount(t *testing.T) {
	fs := NewFilterService()
	assert.False(t, fs.HasActiveFilters())
	assert.Equal(t, 0, fs.ActiveFilterCount())

	// "any" is the unconstrained location, not an active filter.
	fs.UpdateFilters(models.FilterUpdate{Location: strPtr(models.LocationAny)})
	assert.Equal(t, 0, fs.ActiveFilterCount())

	fs.UpdateFilters(models.FilterUpdate{
		Niches:      strSlice("gaming", "tech"),
		AudienceMin: intPtr(1000),
		Location:    strPtr("berlin"),
	})
	assert.Equal(t, 3, fs.ActiveFilterCount())
	assert.True(t, fs.HasActiveFilters())

	// Min and max of the same range count as one filter.
	fs.UpdateFilters(models.FilterUpdate{AudienceMax: intPtr(50000)})
	assert.Equal(t, 3, fs.ActiveFilterCount())
}

func TestResetFiltersRestoresDefaults(t *testing.T) {
	fs := NewFilterService()
	fs.UpdateFilters(models.FilterUpdate{Niches: strSlice("gaming"), VerifiedOnly: boolPtr(true)})
	require.True(t, fs.HasActiveFilters())

	fs.ResetFilters()
	assert.False(t, fs.HasActiveFilters())
	assert.Equal(t, models.FilterState{}, fs.State())
}

func TestSearchDebounceAppliesOnlyLastTerm(t *testing.T) {
	fs := NewFilterService()
	fs.searchDelay = 20 * time.Millisecond

	fs.SetSearch("g")
	fs.SetSearch("ga")
	fs.SetSearch("gaming")

	assert.Empty(t, fs.State().Search)
	require.Eventually(t, func() bool {
		return fs.State().Search == "gaming"
	}, time.Second, 5*time.Millisecond)
}

func TestResetCancelsPendingSearch(t *testing.T) {
	fs := NewFilterService()
	fs.searchDelay = 20 * time.Millisecond

	fs.SetSearch("gaming")
	fs.ResetFilters()

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, fs.State().Search)
}

func TestStateReturnsCopy(t *testing.T) {
	fs := NewFilterService()
	fs.UpdateFilters(models.FilterUpdate{Niches: strSlice("gaming")})

	state := fs.State()
	state.Niches[0] = "mutated"
	assert.Equal(t, []string{"gaming"}, fs.State().Niches)
}
