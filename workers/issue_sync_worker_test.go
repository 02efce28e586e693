package workers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bounty-marketplace-service/models"
	"bounty-marketplace-service/store"
	"bounty-marketplace-service/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncBatch_ClosesBountiesForClosedIssues(t *testing.T) {
	st := store.NewMemoryStore()
	require.NoError(t, st.CreateBounty(&models.Bounty{
		ID:            "b-1",
		ProjectID:     "p-1",
		IssueTitle:    "Fix flaky test",
		GithubRepo:    "acme/widgets",
		IssueNumber:   42,
		Status:        models.StatusOpen,
		ClaimingModel: models.ModelSingleClaim,
	}))
	require.NoError(t, st.CreateBounty(&models.Bounty{
		ID:            "b-2",
		ProjectID:     "p-1",
		IssueTitle:    "Unrelated work",
		GithubRepo:    "acme/widgets",
		IssueNumber:   7,
		Status:        models.StatusOpen,
		ClaimingModel: models.ModelSingleClaim,
	}))

	var gotToken, gotSince string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-Service-Token")
		gotSince = r.URL.Query().Get("since")
		_ = json.NewEncoder(w).Encode(GetIssueChangesResponse{
			Issues: []RemoteIssue{
				{Repo: "acme/widgets", IssueNumber: 42, State: "closed", UpdatedAt: time.Now().UTC()},
				{Repo: "acme/widgets", IssueNumber: 7, State: "open", UpdatedAt: time.Now().UTC()},
			},
		})
	}))
	defer server.Close()

	w := NewIssueSyncWorker(st, utils.NewKeyedMutex(), server.URL, "/api/v1/public/issues", "secret")
	require.NoError(t, w.syncBatch(context.Background(), time.Time{}))

	assert.Equal(t, "secret", gotToken)
	assert.NotEmpty(t, gotSince)

	b1, err := st.GetBountyByID("b-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusClosed, b1.Status)

	// Open upstream issue leaves the bounty alone.
	b2, err := st.GetBountyByID("b-2")
	require.NoError(t, err)
	assert.Equal(t, models.StatusOpen, b2.Status)

	assert.False(t, w.lastSync.IsZero())
}

func TestSyncBatch_Non200IsAnError(t *testing.T) {
	st := store.NewMemoryStore()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer server.Close()

	w := NewIssueSyncWorker(st, utils.NewKeyedMutex(), server.URL, "/api/v1/public/issues", "secret")
	err := w.syncBatch(context.Background(), time.Time{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-200")
}

func TestSyncBatch_EmptyBatchAdvancesCursor(t *testing.T) {
	st := store.NewMemoryStore()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(GetIssueChangesResponse{})
	}))
	defer server.Close()

	w := NewIssueSyncWorker(st, utils.NewKeyedMutex(), server.URL, "/api/v1/public/issues", "secret")
	require.NoError(t, w.syncBatch(context.Background(), time.Time{}))
	assert.False(t, w.lastSync.IsZero())
}
