package models

import "strings"

// Row is one record sent to a write call. Key correlates the row with its result.
type Row struct {
	Key    string
	Record *Record
}

// RowsByID keys every record by its source Id.
func RowsByID(sources []*Record, payloads []*Record) []Row {
	rows := make([]Row, len(payloads))
	for i := range payloads {
		rows[i] = Row{Key: sources[i].ID(), Record: payloads[i]}
	}
	return rows
}

// WriteError is one error reported for a rejected row.
type WriteError struct {
	StatusCode string   `json:"statusCode"`
	Message    string   `json:"message"`
	Fields     []string `json:"fields,omitempty"`
}

// WriteResult is the outcome for a single row of a write call.
type WriteResult struct {
	Key     string       `json:"key"`
	Success bool         `json:"success"`
	ID      string       `json:"id,omitempty"`
	Created bool         `json:"created"`
	Errors  []WriteError `json:"errors,omitempty"`
}

// Summary aggregates the results of one write call.
type Summary struct {
	SuccessCount int          `json:"successCount"`
	SuccessIDs   []string     `json:"successIds"`
	ErrorCount   int          `json:"errorCount"`
	Errors       []WriteError `json:"errors,omitempty"`
}

// Summarize folds write results into a Summary.
func Summarize(results []WriteResult) Summary {
	var s Summary
	for _, r := range results {
		if r.Success {
			s.SuccessCount++
			s.SuccessIDs = append(s.SuccessIDs, r.ID)
			continue
		}
		s.ErrorCount++
		s.Errors = append(s.Errors, r.Errors...)
	}
	return s
}

// CreatedIDs returns the ids of rows the call created.
func CreatedIDs(results []WriteResult) []string {
	var ids []string
	for _, r := range results {
		if r.Success && r.Created && r.ID != "" {
			ids = append(ids, r.ID)
		}
	}
	return ids
}

func (s Summary) String() string {
	var msgs []string
	for _, e := range s.Errors {
		msgs = append(msgs, e.Message+" ("+e.StatusCode+")")
	}
	return strings.Join(msgs, "; ")
}

// Mapping is one registered source-to-target identity.
type Mapping struct {
	ObjectType string `json:"objectType" bson:"objectType"`
	SourceID   string `json:"sourceId" bson:"sourceId"`
	TargetID   string `json:"targetId" bson:"targetId"`
}
