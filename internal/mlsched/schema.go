package mlsched

import "github.com/kmrl/opsboard/internal/tableview"

var (
	taskTones  = tableview.ToneMap{TaskRun: tableview.ToneSuccess, TaskMaintenance: tableview.ToneError, TaskBranding: tableview.ToneInfo, TaskCleaning: tableview.ToneWarning}
	riskTones  = tableview.ToneMap{"Low": tableview.ToneSuccess, "Medium": tableview.ToneWarning, "High": tableview.ToneError}
	trendTones = tableview.ToneMap{"Improving": tableview.ToneSuccess, "Stable": tableview.ToneInfo, "Declining": tableview.ToneWarning}
)

// TaskTone colours a schedule task.
func TaskTone(task string) tableview.Tone { return taskTones.Tone(task) }

// ScheduleSchema lays out a generated schedule as a filterable table.
func ScheduleSchema() tableview.Schema[Assignment] {
	return tableview.Schema[Assignment]{
		Name:  "schedule",
		Title: "Generated Schedule",
		Search: []func(Assignment) string{
			func(a Assignment) string { return a.TrainID },
			func(a Assignment) string { return a.TimeSlot },
		},
		Dimensions: []tableview.Dimension[Assignment]{{
			Name:   "task",
			Label:  "Task",
			Value:  func(a Assignment) string { return a.Task },
			Values: []string{TaskRun, TaskMaintenance, TaskBranding, TaskCleaning},
			Tones:  taskTones,
		}},
		Columns: []tableview.Column[Assignment]{
			{Label: "Time Slot", Text: func(a Assignment) string { return a.TimeSlot }},
			{Label: "Train ID", Text: func(a Assignment) string { return a.TrainID }},
			{Label: "Task", Text: func(a Assignment) string { return a.Task }, Tone: func(a Assignment) tableview.Tone { return TaskTone(a.Task) }},
			{Label: "Reasoning", Text: func(a Assignment) string { return a.Reasoning }},
		},
		Key: func(a Assignment) string { return a.TrainID },
	}
}
