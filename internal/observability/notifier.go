package observability

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"time"
)

// Notifier sends alert notifications to an external channel.
type Notifier interface {
	Notify(ctx context.Context, alerts []Alert) error
}

// SlackOption configures a Slack notifier.
type SlackOption func(*slackNotifier)

// WithTaskURL links each task heading to fmt.Sprintf(format, taskID).
func WithTaskURL(format string) SlackOption {
	return func(s *slackNotifier) { s.taskURL = format }
}

// WithHTTPClient replaces the default client, which times out after ten
// seconds.
func WithHTTPClient(c *http.Client) SlackOption {
	return func(s *slackNotifier) { s.client = c }
}

type slackNotifier struct {
	webhookURL string
	taskURL    string
	client     *http.Client
}

// NewSlackNotifier creates a Notifier that posts to a Slack incoming webhook.
func NewSlackNotifier(webhookURL string, opts ...SlackOption) Notifier {
	s := &slackNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type slackMessage struct {
	Text   string       `json:"text"`
	Blocks []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type     string      `json:"type"`
	Text     *slackText  `json:"text,omitempty"`
	Elements []slackText `json:"elements,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Notify posts alerts as one Block Kit message with a section per task.
// No request is made for an empty slice.
func (s *slackNotifier) Notify(ctx context.Context, alerts []Alert) error {
	if len(alerts) == 0 {
		return nil
	}

	body, err := json.Marshal(s.buildMessage(alerts))
	if err != nil {
		return fmt.Errorf("encoding slack message: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting to slack webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// taskAlerts is the set of alerts raised for one task. An empty taskID
// holds backlog-wide alerts.
type taskAlerts struct {
	taskID string
	alerts []Alert
}

// groupByTask buckets alerts per task, most severe task first, then by id.
// Backlog-wide alerts come last.
func groupByTask(alerts []Alert) []taskAlerts {
	index := make(map[string]int)
	var groups []taskAlerts
	for _, a := range alerts {
		i, ok := index[a.TaskID]
		if !ok {
			i = len(groups)
			index[a.TaskID] = i
			groups = append(groups, taskAlerts{taskID: a.TaskID})
		}
		groups[i].alerts = append(groups[i].alerts, a)
	}

	for _, g := range groups {
		slices.SortStableFunc(g.alerts, func(a, b Alert) int {
			return cmp.Compare(severityRank(a.Severity), severityRank(b.Severity))
		})
	}
	slices.SortStableFunc(groups, func(a, b taskAlerts) int {
		if (a.taskID == "") != (b.taskID == "") {
			if a.taskID == "" {
				return 1
			}
			return -1
		}
		return cmp.Or(
			cmp.Compare(severityRank(a.alerts[0].Severity), severityRank(b.alerts[0].Severity)),
			cmp.Compare(a.taskID, b.taskID),
		)
	})
	return groups
}

func (s *slackNotifier) buildMessage(alerts []Alert) slackMessage {
	groups := groupByTask(alerts)
	tasks := len(groups)
	if groups[len(groups)-1].taskID == "" {
		tasks--
	}
	summary := fmt.Sprintf("%d lifecycle alert(s) across %d task(s)", len(alerts), tasks)

	blocks := []slackBlock{{
		Type: "header",
		Text: &slackText{Type: "plain_text", Text: "tledger: " + summary},
	}}
	for _, g := range groups {
		lines := s.taskHeading(g.taskID)
		for _, a := range g.alerts {
			lines += fmt.Sprintf("\n%s *%s*: %s", severityEmoji(a.Severity), conditionLabel(a.Condition), a.Message)
		}
		blocks = append(blocks, slackBlock{
			Type: "section",
			Text: &slackText{Type: "mrkdwn", Text: lines},
		})
	}
	blocks = append(blocks, slackBlock{
		Type: "context",
		Elements: []slackText{{
			Type: "mrkdwn",
			Text: "Evaluated " + alerts[0].TriggeredAt.UTC().Format("2006-01-02 15:04 UTC"),
		}},
	})

	return slackMessage{Text: summary, Blocks: blocks}
}

func (s *slackNotifier) taskHeading(taskID string) string {
	switch {
	case taskID == "":
		return "*Backlog*"
	case s.taskURL != "":
		return fmt.Sprintf("*<%s|%s>*", fmt.Sprintf(s.taskURL, taskID), taskID)
	default:
		return "*Task " + taskID + "*"
	}
}

func conditionLabel(condition string) string {
	switch condition {
	case "task_blocked_too_long":
		return "Blocked"
	case "task_paused_too_long":
		return "Paused"
	case "task_stale":
		return "Stale"
	case "unclaimed_backlog_too_large":
		return "Unclaimed backlog"
	default:
		return condition
	}
}

func severityRank(severity AlertSeverity) int {
	switch severity {
	case SeverityHigh:
		return 0
	case SeverityMedium:
		return 1
	case SeverityLow:
		return 2
	default:
		return 3
	}
}

func severityEmoji(severity AlertSeverity) string {
	switch severity {
	case SeverityHigh:
		return ":red_circle:"
	case SeverityMedium:
		return ":large_yellow_circle:"
	case SeverityLow:
		return ":large_blue_circle:"
	default:
		return ":grey_question:"
	}
}
