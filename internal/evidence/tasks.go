package evidence

import (
	"strings"

	"github.com/fyrsmithlabs/esgmetrics/internal/extraction"
)

// TaskMetric is what a manual value entered against a task measures.
type TaskMetric struct {
	Metric   string
	Unit     string
	Category extraction.Category
}

// General is used for tasks missing from the table.
var General = TaskMetric{Metric: "general_metric", Unit: "units", Category: extraction.DefaultCategory}

var taskMetrics = map[string]TaskMetric{
	"electricity_consumption": {"energy_consumption", "kWh", extraction.CategoryUtilityBills},
	"water_consumption":       {"water_usage", "L", extraction.CategoryUtilityBills},
	"carbon_footprint":        {"carbon_emissions", "tCO2e", extraction.CategoryUtilityBills},
	"waste_generation":        {"waste_generated", "kg", extraction.CategoryWasteManagement},
	"employee_headcount":      {"total_employees", "employees", extraction.CategoryEmployeeData},
	"training_hours":          {"training_hours", "hours", extraction.CategoryEmployeeData},
}

// categoryKeywords routes task ids missing from the table by substring.
var categoryKeywords = []struct {
	keyword  string
	category extraction.Category
}{
	{"employee", extraction.CategoryEmployeeData},
	{"training", extraction.CategoryEmployeeData},
	{"safety", extraction.CategoryEmployeeData},
	{"staff", extraction.CategoryEmployeeData},
	{"waste", extraction.CategoryWasteManagement},
	{"recycl", extraction.CategoryWasteManagement},
}

// MetricForTask returns the metric a manual value for taskID measures.
func MetricForTask(taskID string) TaskMetric {
	if m, ok := taskMetrics[taskID]; ok {
		return m
	}
	return General
}

// CategoryForTask returns the rule category used for text evidence on taskID.
func CategoryForTask(taskID string) extraction.Category {
	if m, ok := taskMetrics[taskID]; ok {
		return m.Category
	}
	id := strings.ToLower(taskID)
	for _, k := range categoryKeywords {
		if strings.Contains(id, k.keyword) {
			return k.category
		}
	}
	return extraction.DefaultCategory
}
