package ast

import "fmt"

// Level buckets a total complexity score.
type Level string

// Complexity levels.
const (
	LevelLow      Level = "low"
	LevelMedium   Level = "medium"
	LevelHigh     Level = "high"
	LevelVeryHigh Level = "very high"
)

// Complexity holds the counters gathered while transforming a model.
type Complexity struct {
	NestingLevel     int `json:"nesting_level"`
	VariableCount    int `json:"variable_count"`
	OperationCount   int `json:"operation_count"`
	FunctionCount    int `json:"function_count"`
	ConditionalCount int `json:"conditional_count"`
}

// Total returns the weighted complexity score.
func (c Complexity) Total() int {
	return c.NestingLevel +
		c.VariableCount +
		c.OperationCount*2 +
		c.FunctionCount*3 +
		c.ConditionalCount*4
}

// Level classifies the total score.
func (c Complexity) Level() Level {
	switch total := c.Total(); {
	case total <= 5:
		return LevelLow
	case total <= 15:
		return LevelMedium
	case total <= 30:
		return LevelHigh
	default:
		return LevelVeryHigh
	}
}

// String implements fmt.Stringer.
func (c Complexity) String() string {
	return fmt.Sprintf("%d (%s)", c.Total(), c.Level())
}
