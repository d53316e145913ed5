// Package state persists the history of compiled and solved models in
// SQLite. Every compile through the CLI, the batch engine or the HTTP API
// can leave a Record behind; records are queried by recency or problem
// class and summarised by Stats.
package state

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/leapstack-labs/leapopt/pkg/compiler"
	"github.com/leapstack-labs/leapopt/pkg/solver"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// Store is the history store used by the CLI, engine and server.
type Store interface {
	Save(ctx context.Context, r *Record) error
	Get(ctx context.Context, id string) (*Record, error)
	List(ctx context.Context, limit int) ([]*Record, error)
	ListByClass(ctx context.Context, class string, limit int) ([]*Record, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
	Stats(ctx context.Context) (*Stats, error)
	Close() error
}

// Record is one compile, optionally followed by a solve.
type Record struct {
	ID            string    `json:"id"`
	CreatedAt     time.Time `json:"created_at"`
	Name          string    `json:"name,omitempty"`
	Source        string    `json:"source"`
	Class         string    `json:"class,omitempty"`
	Valid         bool      `json:"valid"`
	Errors        []string  `json:"errors,omitempty"`
	Program       string    `json:"program,omitempty"`
	VariableCount int       `json:"variable_count"`
	Complexity    int       `json:"complexity"`
	Status        string    `json:"status,omitempty"`
	Objective     *float64  `json:"objective,omitempty"`
	ElapsedMS     int64     `json:"elapsed_ms"`
}

// NewRecord starts a record for source. The ID and timestamp are assigned
// on Save.
func NewRecord(name, source string) *Record {
	return &Record{Name: name, Source: source}
}

// SetCompiled fills the record from the outcome of compiler.Compile.
func (r *Record) SetCompiled(m *compiler.CompiledModel, err error) {
	r.Valid = err == nil
	r.Errors = nil
	if err != nil {
		for _, line := range strings.Split(err.Error(), "\n") {
			if line = strings.TrimSpace(line); line != "" {
				r.Errors = append(r.Errors, line)
			}
		}
	}
	if m == nil {
		return
	}
	r.Class = string(m.Class())
	r.Program = m.Program()
	r.VariableCount = len(m.Variables())
	r.Complexity = m.Complexity().Total()
}

// SetResult fills the solve outcome.
func (r *Record) SetResult(res *solver.Result) {
	if res == nil {
		return
	}
	r.Status = string(res.Status)
	r.Objective = res.Objective
	r.ElapsedMS = res.Elapsed.Milliseconds()
	if res.Message != "" && (res.Status == solver.StatusExecutionError || res.Status == solver.StatusSolverError) {
		r.Errors = append(r.Errors, res.Message)
	}
}

// Stats summarises the stored history.
type Stats struct {
	Total             int            `json:"total"`
	Valid             int            `json:"valid"`
	Invalid           int            `json:"invalid"`
	AverageComplexity float64        `json:"average_complexity"`
	ByClass           map[string]int `json:"by_class"`
	ByStatus          map[string]int `json:"by_status"`
}
