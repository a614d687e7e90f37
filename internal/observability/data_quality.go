package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/yungbote/concierge-backend/internal/platform/ctxutil"
	"github.com/yungbote/concierge-backend/internal/platform/envutil"
	"github.com/yungbote/concierge-backend/internal/platform/logger"
)

// Ingestion quality issues. Each one marks a document that was processed but
// may search poorly.
const (
	IssueEmptyText     = "empty_text"
	IssueOCRFallback   = "ocr_fallback"
	IssueShortDocument = "short_document"
	IssueTruncated     = "truncated"
	IssueVectorSync    = "vector_sync_failed"
)

const (
	defaultAlertInterval = 5 * time.Minute
	alertPostTimeout     = 5 * time.Second
)

// qualityAlerter posts at most one webhook per stage and issue set within
// the configured interval.
type qualityAlerter struct {
	mu     sync.Mutex
	sent   map[string]time.Time
	client *http.Client
}

var alerts = &qualityAlerter{client: &http.Client{Timeout: alertPostTimeout}}

type qualityAlert struct {
	Title     string         `json:"title"`
	Stage     string         `json:"stage"`
	Issues    map[string]int `json:"issues"`
	Meta      map[string]any `json:"meta"`
	Timestamp string         `json:"timestamp"`
}

// ReportDataQuality counts issues for stage, logs them with trace ids from ctx
// and, when DATA_QUALITY_ALERTS_ENABLED is set, posts a rate-limited alert to
// DATA_QUALITY_ALERT_WEBHOOK_URL.
func ReportDataQuality(ctx context.Context, log *logger.Logger, stage string, issues []string, meta map[string]any) {
	counts := countIssues(issues)
	if len(counts) == 0 {
		return
	}
	if stage = strings.TrimSpace(stage); stage == "" {
		stage = "unknown"
	}
	for issue := range counts {
		Current().IncDataQuality(stage, issue)
	}

	fields := make(map[string]any, len(meta)+2)
	for k, v := range meta {
		fields[k] = v
	}
	if td := ctxutil.GetTraceData(ctx); td != nil {
		if td.TraceID != "" {
			fields["trace_id"] = td.TraceID
		}
		if td.RequestID != "" {
			fields["request_id"] = td.RequestID
		}
	}
	if log != nil {
		log.Warn("ingestion quality issue detected", "stage", stage, "issues", counts, "meta", fields)
	}

	if !envutil.Bool("DATA_QUALITY_ALERTS_ENABLED", false) {
		return
	}
	webhook := envutil.String("DATA_QUALITY_ALERT_WEBHOOK_URL", "")
	if webhook == "" {
		return
	}
	interval := envutil.Seconds("DATA_QUALITY_ALERT_MIN_INTERVAL_SECONDS", defaultAlertInterval)
	if interval <= 0 {
		interval = defaultAlertInterval
	}
	if !alerts.allow(alertKey(stage, counts), time.Now(), interval) {
		return
	}
	alert := qualityAlert{
		Title:     "Document ingestion quality issue",
		Stage:     stage,
		Issues:    counts,
		Meta:      fields,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if err := alerts.post(ctx, webhook, alert); err != nil {
		if log != nil {
			log.Warn("data quality alert failed", "stage", stage, "error", err)
		}
		return
	}
	if log != nil {
		log.Info("data quality alert sent", "stage", stage)
	}
}

func countIssues(issues []string) map[string]int {
	counts := map[string]int{}
	for _, issue := range issues {
		if issue = strings.TrimSpace(issue); issue != "" {
			counts[issue]++
		}
	}
	return counts
}

// alertKey groups alerts by stage and the set of issues seen.
func alertKey(stage string, counts map[string]int) string {
	names := make([]string, 0, len(counts))
	for k := range counts {
		names = append(names, k)
	}
	slices.Sort(names)
	return stage + "|" + strings.Join(names, ",")
}

func (a *qualityAlerter) allow(key string, now time.Time, interval time.Duration) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if last, ok := a.sent[key]; ok && now.Sub(last) < interval {
		return false
	}
	if a.sent == nil {
		a.sent = map[string]time.Time{}
	}
	a.sent[key] = now
	return true
}

// post delivers the alert even when ctx is already cancelled; the request is
// bounded by alertPostTimeout instead.
func (a *qualityAlerter) post(ctx context.Context, webhook string, alert qualityAlert) error {
	body, err := json.Marshal(alert)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctxutil.Default(ctx)), alertPostTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhook, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
