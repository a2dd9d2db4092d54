package notify

import (
	"fmt"

	"github.com/CosmoTheDev/forgemirror/internal/mirror"
)

// ResultEvent returns the event reporting res, if any. Link write failures
// get their own type since they leave the host and forge out of step.
func ResultEvent(command string, res mirror.Result) (Event, bool) {
	if !res.Failed() {
		return Event{}, false
	}
	evt := Event{
		Type:  EventMirrorFailed,
		Title: fmt.Sprintf("forgemirror %s failed for %s", command, res.Repo),
		Body:  res.ErrorText(),
		Repo:  res.Repo,
		Kind:  string(mirror.KindOf(res.Err)),
	}
	if mirror.Inconsistent(res.Err) {
		evt.Type = EventLinkWriteFailed
		evt.Title = fmt.Sprintf("forgemirror: %s has a host repository but no push link", res.Repo)
	}
	return evt, true
}

// BatchEvent summarises a finished saved-query run.
func BatchEvent(command, query string, s mirror.Summary) Event {
	return Event{
		Type:  EventBatchCompleted,
		Title: fmt.Sprintf("forgemirror %s %s: %d repositories", command, query, s.Total),
		Body: fmt.Sprintf("mirrored %d, updated %d, skipped %d, failed %d",
			s.Mirrored, s.Updated, s.Skipped, s.Failed),
		Metadata: map[string]any{
			"query":    query,
			"total":    s.Total,
			"mirrored": s.Mirrored,
			"updated":  s.Updated,
			"skipped":  s.Skipped,
			"failed":   s.Failed,
		},
	}
}
