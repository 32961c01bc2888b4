package evidence

import (
	"testing"

	"github.com/fyrsmithlabs/esgmetrics/internal/extraction"
	"github.com/stretchr/testify/assert"
)

func TestMetricForTask(t *testing.T) {
	tests := map[string]TaskMetric{
		"electricity_consumption": {"energy_consumption", "kWh", extraction.CategoryUtilityBills},
		"water_consumption":       {"water_usage", "L", extraction.CategoryUtilityBills},
		"waste_generation":        {"waste_generated", "kg", extraction.CategoryWasteManagement},
		"carbon_footprint":        {"carbon_emissions", "tCO2e", extraction.CategoryUtilityBills},
		"employee_headcount":      {"total_employees", "employees", extraction.CategoryEmployeeData},
		"training_hours":          {"training_hours", "hours", extraction.CategoryEmployeeData},
		"board_diversity":         General,
		"":                        General,
	}
	for task, want := range tests {
		assert.Equal(t, want, MetricForTask(task), task)
	}
}

func TestCategoryForTask(t *testing.T) {
	tests := map[string]extraction.Category{
		"electricity_consumption": extraction.CategoryUtilityBills,
		"training_hours":          extraction.CategoryEmployeeData,
		"Employee_Wellbeing":      extraction.CategoryEmployeeData,
		"safety_training_log":     extraction.CategoryEmployeeData,
		"recycling_program":       extraction.CategoryWasteManagement,
		"hazardous_waste":         extraction.CategoryWasteManagement,
		"solar_installation":      extraction.DefaultCategory,
	}
	for task, want := range tests {
		assert.Equal(t, want, CategoryForTask(task), task)
	}
}
