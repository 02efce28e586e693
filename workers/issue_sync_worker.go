// workers/issue_sync_worker.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"bounty-marketplace-service/models"
	"bounty-marketplace-service/store"
	"bounty-marketplace-service/utils"
)

// RemoteIssue matches the JSON response from the issue-tracker proxy.
type RemoteIssue struct {
	Repo        string    `json:"repo"` // owner/repo
	IssueNumber int       `json:"issue_number"`
	Title       string    `json:"title"`
	State       string    `json:"state"` // open | closed
	ClosedAt    time.Time `json:"closed_at,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// GetIssueChangesResponse is the top-level structure of the proxy response.
type GetIssueChangesResponse struct {
	Issues []RemoteIssue `json:"issues"`
}

// IssueSyncWorker polls the issue-tracker proxy and closes bounties whose
// upstream GitHub issues were closed outside the marketplace. It talks to
// storage only through the Store contract, so it works against any backend.
type IssueSyncWorker struct {
	store        store.Store
	locks        *utils.KeyedMutex
	interval     time.Duration
	baseURL      string // e.g., "http://localhost:8600"
	endpointPath string // e.g., "/api/v1/public/issues"
	serviceToken string
	httpClient   *http.Client

	lastSync time.Time
}

func NewIssueSyncWorker(st store.Store, locks *utils.KeyedMutex, proxyBaseURL, endpointPath, serviceToken string) *IssueSyncWorker {
	return &IssueSyncWorker{
		store:        st,
		locks:        locks,
		interval:     1 * time.Minute,
		baseURL:      proxyBaseURL,
		endpointPath: endpointPath,
		serviceToken: serviceToken,
		httpClient:   utils.HTTPClient,
	}
}

func (w *IssueSyncWorker) Start(ctx context.Context) {
	log.Println("🔁 Starting Issue Sync Worker (issue-tracker proxy → bounties)…")
	go w.run(ctx)
}

func (w *IssueSyncWorker) run(ctx context.Context) {
	// Initial sync — backfill from the beginning of time.
	if err := w.syncBatch(ctx, time.Time{}); err != nil {
		log.Printf("⚠️ Initial issue sync failed: %v", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.syncBatch(ctx, w.lastSync); err != nil {
				log.Printf("❌ Issue sync batch failed: %v", err)
			}
		case <-ctx.Done():
			log.Println("⏹️ Issue Sync Worker stopped")
			return
		}
	}
}

// syncBatch fetches issue changes from the proxy and closes local bounties
// whose issues closed upstream.
func (w *IssueSyncWorker) syncBatch(ctx context.Context, since time.Time) error {
	sinceStr := since.UTC().Format(time.RFC3339)

	base, err := url.Parse(w.baseURL)
	if err != nil {
		return fmt.Errorf("invalid issue proxy URL '%s': %w", w.baseURL, err)
	}

	endpointURL := base.JoinPath(w.endpointPath)
	q := endpointURL.Query()
	q.Set("since", sinceStr)
	endpointURL.RawQuery = q.Encode()
	finalURL := endpointURL.String()

	req, err := http.NewRequestWithContext(ctx, "GET", finalURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request to %s: %w", finalURL, err)
	}
	req.Header.Set("X-Service-Token", w.serviceToken)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request to issue proxy failed: %w", err)
	}
	defer func() {
		// Always drain & close to prevent connection leaks
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("issue proxy non-200 response: %d — %s", resp.StatusCode, string(body))
	}

	var response GetIssueChangesResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return fmt.Errorf("failed to decode issue proxy response: %w", err)
	}

	if len(response.Issues) == 0 {
		w.lastSync = time.Now().UTC()
		return nil
	}

	log.Printf("[ISSUE_SYNC] 📥 Processing %d issue change(s)…", len(response.Issues))

	var closedCount, errorCount int
	for _, issue := range response.Issues {
		if issue.State != "closed" {
			continue
		}

		bounties, _, err := w.store.ListBounties(store.BountyFilter{
			GithubRepo:  issue.Repo,
			IssueNumber: issue.IssueNumber,
		})
		if err != nil {
			errorCount++
			log.Printf("[ISSUE_SYNC] ⚠️ Lookup failed for %s#%d: %v", issue.Repo, issue.IssueNumber, err)
			continue
		}

		for _, b := range bounties {
			if b.Status == models.StatusClosed {
				continue
			}
			unlock := w.locks.Lock("bounty:" + b.ID)
			_, err := w.store.UpdateBounty(b.ID, map[string]any{
				"status":     models.StatusClosed,
				"updated_at": time.Now().UTC(),
			})
			unlock()
			if err != nil {
				errorCount++
				log.Printf("[ISSUE_SYNC] ⚠️ Failed to close bounty %s for %s#%d: %v", b.ID, issue.Repo, issue.IssueNumber, err)
			} else {
				closedCount++
				log.Printf("[ISSUE_SYNC] ✅ Closed bounty %s — issue %s#%d closed upstream", b.ID, issue.Repo, issue.IssueNumber)
			}
		}
	}

	w.lastSync = time.Now().UTC()
	log.Printf("[ISSUE_SYNC] ✅ Batch done (%d bounties closed, %d errors)", closedCount, errorCount)
	return nil
}
