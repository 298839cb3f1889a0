package rosterclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/faeln1/go-checkin-api/internal/domain/attendance"
	"github.com/stretchr/testify/require"
)

func TestAPIClient(t *testing.T) {
	var gotAuth string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/Event/people/3", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(seedRoster(3))
	})
	mux.HandleFunc("/api/Event/summary/3", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(attendance.EventSummary{CommunityName: "GopherCon", TotalPeople: 4})
	})
	mux.HandleFunc("/api/Event/summary/99", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "community not found"})
	})
	mux.HandleFunc("/api/Event/check-in/7", func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		p := attendance.ApplyCheckIn(attendance.Person{ID: 7, CommunityID: 3}, seedRoster(3)[1].CheckInDate.UTC())
		json.NewEncoder(w).Encode(p)
	})
	mux.HandleFunc("/api/Event/check-out/7", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "database locked"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	api := NewAPIClient(srv.URL+"/", "secret", nil)
	ctx := context.Background()

	people, err := api.ListPeople(ctx, 3)
	require.NoError(t, err)
	require.Len(t, people, 4)

	v, err := api.Fetch(ctx, SummaryKey(3))
	require.NoError(t, err)
	require.Equal(t, "GopherCon", v.(attendance.EventSummary).CommunityName)

	_, err = api.Summary(ctx, 99)
	require.ErrorIs(t, err, ErrNotFound)

	person, err := api.CheckIn(ctx, 7)
	require.NoError(t, err)
	require.NotNil(t, person.CheckInDate)
	require.Equal(t, "Bearer secret", gotAuth)

	_, err = api.CheckOut(ctx, 7)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusInternalServerError, apiErr.Status)
	require.Equal(t, "database locked", apiErr.Message)

	_, err = api.Fetch(ctx, CacheKey{Kind: "badges", CommunityID: 3})
	require.Error(t, err)
}
