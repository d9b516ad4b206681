package google

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"

	"davbridge/internal/models"
)

func TestToSourceEvents(t *testing.T) {
	items := []*calendar.Event{
		{
			Id:          "g1",
			Summary:     "Standup",
			Description: "daily",
			Location:    "Zoom",
			Start:       &calendar.EventDateTime{DateTime: "2025-03-15T10:00:00+02:00"},
			End:         &calendar.EventDateTime{DateTime: "2025-03-15T10:15:00+02:00"},
			Attendees: []*calendar.EventAttendee{
				{Email: "jane@example.com", DisplayName: "Jane"},
				{Email: "room@resource.example.com", Resource: true},
				{DisplayName: "No Address"},
			},
		},
		{
			Id:    "allday",
			Start: &calendar.EventDateTime{Date: "2025-03-16"},
			End:   &calendar.EventDateTime{Date: "2025-03-17"},
		},
		{
			Id:    "broken",
			Start: &calendar.EventDateTime{DateTime: "yesterday"},
			End:   &calendar.EventDateTime{DateTime: "2025-03-15T10:15:00Z"},
		},
	}

	got := toSourceEvents(items)
	require.Len(t, got, 1)
	assert.Equal(t, "g1", got[0].ID)
	assert.Equal(t, models.Event{
		Summary:      "Standup",
		Description:  "daily",
		Start:        time.Date(2025, 3, 15, 8, 0, 0, 0, time.UTC),
		End:          time.Date(2025, 3, 15, 8, 15, 0, 0, time.UTC),
		Location:     "Zoom",
		Participants: []models.Participant{{Email: "jane@example.com", Name: "Jane"}},
	}, got[0].Event)
}

func TestTokenFiles(t *testing.T) {
	dir := t.TempDir()
	token := &oauth2.Token{AccessToken: "abc", TokenType: "Bearer"}

	require.NoError(t, SaveToken(TokenPath(dir, "work"), token))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600))

	accounts, err := GetTokenAccounts(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"work"}, accounts)

	loaded, err := tokenFromFile(TokenPath(dir, "work"))
	require.NoError(t, err)
	assert.Equal(t, "abc", loaded.AccessToken)
}

func TestOAuthConfigFromClientCredentials(t *testing.T) {
	cfg, err := GetOAuthConfigForAuthFlow("id", "secret")
	require.NoError(t, err)
	assert.Equal(t, "id", cfg.ClientID)
	assert.Equal(t, []string{calendar.CalendarReadonlyScope}, cfg.Scopes)
}
