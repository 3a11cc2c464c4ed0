package summary

import (
	"fmt"
	"strings"

	"github.com/susylPearl/eod-auto-reporter/internal/activity"
)

// Options controls display limits for the report body.
type Options struct {
	// MaxCommitsPerRepo caps the commits rendered under each repository
	// group, keeping the earliest entries in snapshot order. Zero means
	// no cap. Truncation never reorders.
	MaxCommitsPerRepo int
}

// statusPrefix maps tracker statuses to the short labels used in the
// report body.
var statusPrefix = map[string]string{
	"in progress": "wip",
	"in review":   "dev-test",
	"review":      "dev-test",
	"qa":          "dev-test",
	"testing":     "dev-test",
	"done":        "completed",
	"complete":    "completed",
	"closed":      "completed",
	"resolved":    "completed",
}

// Build transforms a composite activity snapshot into the report
// block-tree. It is pure: equal inputs produce identical reports, and
// per-source errors never surface in the body. Sections with no data
// are omitted entirely; the closing focus line is always present.
func Build(daily *activity.Daily, opts Options) Report {
	r := Report{Date: daily.Date}

	r.Sections = append(r.Sections, Section{Title: "Updates — " + daily.Date})

	if sec, ok := developmentSection(daily.Code, opts.MaxCommitsPerRepo); ok {
		r.Sections = append(r.Sections, sec)
	}
	if sec, ok := taskSection(daily.Tasks); ok {
		r.Sections = append(r.Sections, sec)
	}
	if sec, ok := chatSection(daily.Chat); ok {
		r.Sections = append(r.Sections, sec)
	}
	if len(daily.ManualUpdates) > 0 {
		sec := Section{Title: "Additional updates:"}
		for _, text := range daily.ManualUpdates {
			sec.Entries = append(sec.Entries, Entry{Text: text, Indent: 1})
		}
		r.Sections = append(r.Sections, sec)
	}
	if daily.AISummary != "" {
		r.Sections = append(r.Sections, Section{
			Title:   "Summary:",
			Entries: []Entry{{Text: daily.AISummary, Italic: true, Indent: 1}},
		})
	}

	r.Sections = append(r.Sections, Section{
		Entries: []Entry{{Text: focusLine(daily), Italic: true}},
	})
	return r
}

// developmentSection groups commits by repository in first-seen order,
// then lists opened and merged pull requests.
func developmentSection(code *activity.CodeActivity, maxPerRepo int) (Section, bool) {
	if code.IsEmpty() {
		return Section{}, false
	}
	sec := Section{Title: "Development:"}

	var repoOrder []string
	byRepo := map[string][]activity.Commit{}
	for _, c := range code.Commits {
		if _, seen := byRepo[c.Repo]; !seen {
			repoOrder = append(repoOrder, c.Repo)
		}
		byRepo[c.Repo] = append(byRepo[c.Repo], c)
	}

	for _, repo := range repoOrder {
		commits := byRepo[repo]
		if maxPerRepo > 0 && len(commits) > maxPerRepo {
			commits = commits[:maxPerRepo]
		}
		sec.Entries = append(sec.Entries, Entry{Text: shortRepo(repo) + ":", Indent: 1})
		for _, c := range commits {
			sec.Entries = append(sec.Entries, Entry{Text: c.Message, URL: c.URL, Indent: 2})
		}
	}

	for _, pr := range code.PRsOpened {
		sec.Entries = append(sec.Entries, Entry{Text: "PR opened: " + prLine(pr), URL: pr.URL, Indent: 1})
	}
	for _, pr := range code.PRsMerged {
		sec.Entries = append(sec.Entries, Entry{Text: "PR merged: " + prLine(pr), URL: pr.URL, Indent: 1})
	}
	return sec, true
}

func prLine(pr activity.PullRequest) string {
	return fmt.Sprintf("#%d %s (%s)", pr.Number, pr.Title, shortRepo(pr.Repo))
}

func shortRepo(full string) string {
	if i := strings.LastIndex(full, "/"); i >= 0 {
		return full[i+1:]
	}
	return full
}

// taskSection lists completed tasks first, then status changes. Tasks
// are not deduplicated across the two categories.
func taskSection(tasks *activity.TaskActivity) (Section, bool) {
	if tasks == nil || (len(tasks.Completed) == 0 && len(tasks.StatusChanged) == 0) {
		return Section{}, false
	}
	sec := Section{Title: "Task updates:"}
	for _, t := range tasks.Completed {
		sec.Entries = append(sec.Entries, Entry{Text: taskLine(t), URL: t.URL, Indent: 1})
	}
	for _, t := range tasks.StatusChanged {
		sec.Entries = append(sec.Entries, Entry{Text: taskLine(t), URL: t.URL, Indent: 1})
	}
	return sec, true
}

func taskLine(t activity.Task) string {
	line := fmt.Sprintf("%s [%s]", t.Name, t.Status)
	if prefix := statusPrefix[strings.ToLower(t.Status)]; prefix != "" {
		line = prefix + ": " + line
	}
	return line
}

// chatSection renders one entry per channel the user was active in:
// the AI digest when one was generated, otherwise a message count.
// Monitored channels without messages in the window are left out.
func chatSection(chat *activity.ChatActivity) (Section, bool) {
	if chat.IsEmpty() {
		return Section{}, false
	}
	sec := Section{Title: "Discussions:"}
	for _, ch := range chat.Channels {
		if len(ch.Messages) == 0 {
			continue
		}
		text := fmt.Sprintf("%d messages", len(ch.Messages))
		if ch.Digest != "" {
			text = ch.Digest
		}
		sec.Entries = append(sec.Entries, Entry{Text: "#" + ch.ChannelName + ": " + text, Indent: 1})
	}
	return sec, len(sec.Entries) > 0
}

// focusLine synthesizes the closing sentence from counts alone, so the
// report always ends with a deterministic, non-empty line even when no
// AI summary is configured.
func focusLine(daily *activity.Daily) string {
	commits, prs, completed := 0, 0, 0
	if daily.Code != nil {
		commits = len(daily.Code.Commits)
		prs = len(daily.Code.PRsOpened) + len(daily.Code.PRsMerged)
	}
	if daily.Tasks != nil {
		completed = len(daily.Tasks.Completed)
	}
	if commits == 0 && prs == 0 && completed == 0 {
		return "Focus: wrapping up — no tracked commits, PRs, or completed tasks today."
	}
	return fmt.Sprintf("Focus: %s, %s, %s today.",
		plural(commits, "commit"), plural(prs, "PR"), plural(completed, "task completed"))
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	// "2 tasks completed", not "2 task completeds"
	if head, tail, ok := strings.Cut(noun, " "); ok {
		return fmt.Sprintf("%d %ss %s", n, head, tail)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
