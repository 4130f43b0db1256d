package assistant

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dwizi/pmt-assistant/internal/intent"
	"github.com/dwizi/pmt-assistant/internal/pmcontext"
)

const NoTasksMessage = "✅ No tasks found. You're all caught up!"

// renderTasks lists personal tasks with a strict precedence: overdue, then
// due today, then upcoming.
func renderTasks(view answerView) string {
	personal := view.data.PersonalTasks
	if personal.Len() == 0 {
		return NoTasksMessage
	}
	today := view.data.Today
	overdue := sortTasks(personal.Overdue)
	dueToday := sortTasks(personal.Today)
	upcoming := sortTasks(personal.Upcoming)

	lines := []string{}
	if len(overdue) > 0 {
		lines = append(lines, fmt.Sprintf("🚨 **Overdue tasks (%d)**: handle these first.", len(overdue)))
		for _, task := range overdue {
			lines = append(lines, "• "+describeTask(task, today))
		}
	}
	if len(dueToday) > 0 {
		if len(lines) > 0 {
			lines = append(lines, "")
		}
		if len(overdue) > 0 {
			lines = append(lines, fmt.Sprintf("📅 **Due today (%d)**: secondary, once the overdue tasks are handled.", len(dueToday)))
		} else {
			lines = append(lines, fmt.Sprintf("📅 **Due today (%d)**:", len(dueToday)))
		}
		for _, task := range dueToday {
			lines = append(lines, "• "+describeTask(task, today))
		}
	}
	if len(upcoming) > 0 {
		if len(lines) > 0 {
			lines = append(lines, "")
		}
		lines = append(lines, fmt.Sprintf("🔜 **Upcoming (%d)**:", len(upcoming)))
		for _, task := range upcoming {
			lines = append(lines, "• "+describeTask(task, today))
		}
	}

	lines = append(lines, "", "💡 "+taskRecommendation(overdue, dueToday, upcoming))
	return strings.Join(lines, "\n")
}

func taskRecommendation(overdue, dueToday, upcoming []pmcontext.TaskRecord) string {
	switch {
	case len(overdue) > 0 && len(dueToday) > 0:
		return fmt.Sprintf("Start with %q, then move on to today's work beginning with %q.", overdue[0].Name, dueToday[0].Name)
	case len(overdue) > 0:
		return fmt.Sprintf("Start with %q; it is your most urgent overdue task.", overdue[0].Name)
	case len(dueToday) > 0:
		return fmt.Sprintf("Focus on %q today.", dueToday[0].Name)
	default:
		return fmt.Sprintf("Nothing is due today. Get ahead on %q.", upcoming[0].Name)
	}
}

func renderTeamTasks(view answerView) (string, bool) {
	team := view.data.TeamTasks
	if view.data.TeamTaskCount() == 0 {
		return "", false
	}
	owners := teamOwners(team)
	if member, ok := intent.MentionedMember(view.query, owners); ok {
		buckets, found := lookupOwner(team, member)
		if !found || buckets.Len() == 0 {
			return fmt.Sprintf("👤 No tasks found for %s.", member), true
		}
		lines := []string{fmt.Sprintf("👤 **%s's tasks (%d)**", member, buckets.Len())}
		lines = append(lines, ownerSection(buckets, view.data.Today)...)
		return strings.Join(lines, "\n"), true
	}

	lines := []string{fmt.Sprintf("👥 **Team tasks** (%d across %d members)", view.data.TeamTaskCount(), len(owners))}
	overdueByOwner := map[string]int{}
	for _, owner := range owners {
		buckets := team[owner]
		if buckets.Len() == 0 {
			continue
		}
		lines = append(lines, "", fmt.Sprintf("**%s** (%d)", owner, buckets.Len()))
		lines = append(lines, ownerSection(buckets, view.data.Today)...)
		if len(buckets.Overdue) > 0 {
			overdueByOwner[owner] = len(buckets.Overdue)
		}
	}
	lines = append(lines, "", "💡 **Recommendations**")
	lines = append(lines, teamRecommendations(owners, overdueByOwner, team)...)
	return strings.Join(lines, "\n"), true
}

func ownerSection(buckets pmcontext.TaskBuckets, today time.Time) []string {
	lines := []string{}
	groups := []struct {
		label string
		tasks []pmcontext.TaskRecord
	}{
		{label: "🚨 Overdue", tasks: buckets.Overdue},
		{label: "📅 Due today", tasks: buckets.Today},
		{label: "🔜 Upcoming", tasks: buckets.Upcoming},
	}
	for _, group := range groups {
		if len(group.tasks) == 0 {
			continue
		}
		lines = append(lines, "  "+group.label+":")
		for _, task := range sortTasks(group.tasks) {
			lines = append(lines, "  • "+describeTask(task, today))
		}
	}
	return lines
}

func teamRecommendations(owners []string, overdueByOwner map[string]int, team map[string]pmcontext.TaskBuckets) []string {
	if len(overdueByOwner) == 0 {
		lines := []string{"• No overdue tasks across the team. Keep the current pace and review upcoming deadlines in the next stand-up."}
		if busiest, count := busiestOwner(owners, team); count > 1 {
			lines = append(lines, fmt.Sprintf("• %s carries the most work (%d tasks); check whether anything can be shared.", busiest, count))
		}
		return lines
	}
	total := 0
	names := []string{}
	for _, owner := range owners {
		if count, ok := overdueByOwner[owner]; ok {
			total += count
			names = append(names, fmt.Sprintf("%s (%d)", owner, count))
		}
	}
	return []string{
		fmt.Sprintf("• %d overdue %s across the team: %s.", total, plural(total, "task", "tasks"), strings.Join(names, ", ")),
		"• Check in with the owners of overdue work about blockers and agree on new dates.",
		"• Consider moving upcoming work away from members with overdue items until they catch up.",
	}
}

func busiestOwner(owners []string, team map[string]pmcontext.TaskBuckets) (string, int) {
	best, count := "", 0
	for _, owner := range owners {
		if size := team[owner].Len(); size > count {
			best, count = owner, size
		}
	}
	return best, count
}

// teamOwners returns owner names sorted, with "Unassigned" last.
func teamOwners(team map[string]pmcontext.TaskBuckets) []string {
	owners := make([]string, 0, len(team))
	for owner := range team {
		owners = append(owners, owner)
	}
	sort.Slice(owners, func(i, j int) bool {
		if owners[i] == "Unassigned" || owners[j] == "Unassigned" {
			return owners[j] == "Unassigned" && owners[i] != "Unassigned"
		}
		return owners[i] < owners[j]
	})
	return owners
}

func lookupOwner(team map[string]pmcontext.TaskBuckets, name string) (pmcontext.TaskBuckets, bool) {
	for owner, buckets := range team {
		if namesMatch(owner, name) {
			return buckets, true
		}
	}
	return pmcontext.TaskBuckets{}, false
}

func renderField(view answerView) (string, bool) {
	field, taskName := intent.ExtractField(view.query)
	if field == intent.FieldNone {
		return "", false
	}
	today := view.data.Today
	if taskName == "" {
		tasks := sortTasks(view.data.PersonalTasks.All())
		if len(tasks) == 0 {
			return "", false
		}
		lines := []string{fmt.Sprintf("📋 **%s of your tasks**", fieldTitle(field))}
		for _, task := range tasks {
			lines = append(lines, "• "+task.Name+": "+fieldValue(task, field, today))
		}
		return strings.Join(lines, "\n"), true
	}
	task, ok := findTask(view.data, taskName)
	if !ok {
		return "", false
	}
	return fieldSentence(task, field, today), true
}

func fieldSentence(task pmcontext.TaskRecord, field intent.Field, today time.Time) string {
	switch field {
	case intent.FieldDue:
		if task.Due == "" || task.Due == pmcontext.NoDueDate {
			return fmt.Sprintf("📅 **%s** has no due date.", task.Name)
		}
		return fmt.Sprintf("📅 **%s** is due %s.", task.Name, fieldValue(task, field, today))
	case intent.FieldCreated:
		if task.Created == "" {
			return fmt.Sprintf("🗓️ No creation date is recorded for **%s**.", task.Name)
		}
		return fmt.Sprintf("🗓️ **%s** was created on %s.", task.Name, task.Created)
	case intent.FieldStatus:
		return fmt.Sprintf("📌 **%s** status: %s.", task.Name, task.Status)
	default:
		return fmt.Sprintf("⭐ **%s** priority: %s.", task.Name, task.Priority)
	}
}

func fieldValue(task pmcontext.TaskRecord, field intent.Field, today time.Time) string {
	switch field {
	case intent.FieldDue:
		if task.Due == "" || task.Due == pmcontext.NoDueDate {
			return pmcontext.NoDueDate
		}
		if task.Urgency == pmcontext.UrgencyOverdue {
			return task.Due + " (" + overdueLabel(task, today) + ")"
		}
		return task.Due
	case intent.FieldCreated:
		if task.Created == "" {
			return "unknown"
		}
		return task.Created
	case intent.FieldStatus:
		return task.Status
	default:
		return string(task.Priority)
	}
}

func fieldTitle(field intent.Field) string {
	switch field {
	case intent.FieldDue:
		return "Due dates"
	case intent.FieldCreated:
		return "Creation dates"
	case intent.FieldStatus:
		return "Status"
	default:
		return "Priority"
	}
}

// findTask prefers an exact name match, then containment in either direction.
func findTask(data pmcontext.Aggregated, name string) (pmcontext.TaskRecord, bool) {
	all := data.PersonalTasks.All()
	for _, owner := range teamOwners(data.TeamTasks) {
		all = append(all, data.TeamTasks[owner].All()...)
	}
	target := strings.ToLower(strings.TrimSpace(name))
	for _, task := range all {
		if strings.ToLower(task.Name) == target {
			return task, true
		}
	}
	for _, task := range all {
		candidate := strings.ToLower(task.Name)
		if strings.Contains(candidate, target) || strings.Contains(target, candidate) {
			return task, true
		}
	}
	return pmcontext.TaskRecord{}, false
}

var kanbanOrder = []string{"To Do", "Backlog", "Pending", "Active", "In Progress", "Review", "Blocked", "Done"}

func renderKanban(view answerView) (string, bool) {
	type entry struct {
		task  pmcontext.TaskRecord
		owner string
	}
	columns := map[string][]entry{}
	add := func(task pmcontext.TaskRecord, owner string) {
		column := canonicalColumn(task.Status)
		columns[column] = append(columns[column], entry{task: task, owner: owner})
	}
	for _, task := range view.data.PersonalTasks.All() {
		add(task, "")
	}
	for _, owner := range teamOwners(view.data.TeamTasks) {
		for _, task := range view.data.TeamTasks[owner].All() {
			add(task, owner)
		}
	}
	if len(columns) == 0 {
		return "", false
	}

	names := make([]string, 0, len(columns))
	for name := range columns {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		ri, rj := columnRank(names[i]), columnRank(names[j])
		if ri != rj {
			return ri < rj
		}
		return names[i] < names[j]
	})

	lines := []string{"📋 **Kanban board**"}
	for _, name := range names {
		entries := columns[name]
		lines = append(lines, "", fmt.Sprintf("**%s (%d)**", name, len(entries)))
		for _, item := range entries {
			detail := "Priority: " + string(item.task.Priority)
			if item.owner != "" {
				detail = item.owner + ", " + detail
			}
			if item.task.Urgency == pmcontext.UrgencyOverdue {
				detail += ", overdue"
			}
			lines = append(lines, fmt.Sprintf("• %s (%s)", item.task.Name, detail))
		}
	}
	return strings.Join(lines, "\n"), true
}

func canonicalColumn(status string) string {
	trimmed := strings.TrimSpace(status)
	if trimmed == "" {
		return "Pending"
	}
	for _, column := range kanbanOrder {
		if strings.EqualFold(trimmed, column) {
			return column
		}
	}
	lower := strings.ToLower(trimmed)
	switch {
	case lower == "todo" || lower == "to-do" || lower == "open":
		return "To Do"
	case lower == "doing" || lower == "in-progress" || lower == "started":
		return "In Progress"
	case lower == "completed" || lower == "closed" || lower == "finished":
		return "Done"
	case lower == "in review":
		return "Review"
	}
	return trimmed
}

func columnRank(column string) int {
	for index, name := range kanbanOrder {
		if name == column {
			return index
		}
	}
	return len(kanbanOrder)
}

func describeTask(task pmcontext.TaskRecord, today time.Time) string {
	details := []string{"Priority: " + string(task.Priority)}
	if task.Status != "" {
		details = append(details, "Status: "+task.Status)
	}
	text := fmt.Sprintf("%s (%s)", task.Name, strings.Join(details, ", "))
	switch {
	case task.Urgency == pmcontext.UrgencyOverdue:
		text += " - " + overdueLabel(task, today)
	case task.Due != "" && task.Due != pmcontext.NoDueDate:
		text += " - due " + task.Due
	}
	return text
}

// overdueLabel renders how late a task is. Unparseable due dates are shown as
// an unknown duration rather than zero days.
func overdueLabel(task pmcontext.TaskRecord, today time.Time) string {
	days, ok := pmcontext.DaysOverdue(task, today)
	if !ok {
		return "overdue (duration unknown)"
	}
	if days == 0 {
		return "overdue"
	}
	return fmt.Sprintf("%d %s overdue", days, plural(days, "day", "days"))
}

var priorityRank = map[pmcontext.Priority]int{
	pmcontext.PriorityHigh:   0,
	pmcontext.PriorityMedium: 1,
	pmcontext.PriorityNormal: 2,
	pmcontext.PriorityLow:    3,
}

// sortTasks orders by priority, then earliest parsed due date; tasks without
// a date keep their input order after dated ones.
func sortTasks(tasks []pmcontext.TaskRecord) []pmcontext.TaskRecord {
	out := append([]pmcontext.TaskRecord(nil), tasks...)
	sort.SliceStable(out, func(i, j int) bool {
		pi, pj := priorityRank[out[i].Priority], priorityRank[out[j].Priority]
		if pi != pj {
			return pi < pj
		}
		if out[i].HasDueDate() != out[j].HasDueDate() {
			return out[i].HasDueDate()
		}
		if out[i].HasDueDate() {
			return out[i].DueAt.Before(out[j].DueAt)
		}
		return false
	})
	return out
}

func plural(count int, one, many string) string {
	if count == 1 {
		return one
	}
	return many
}
