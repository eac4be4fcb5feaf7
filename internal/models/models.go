package models

import (
	"strings"
	"time"
)

// Status tags the outcome of one unit of generation work.
type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

type TaskType string

const (
	TaskSummarize TaskType = "summarize"
	TaskAnswer    TaskType = "answer"
	TaskReference TaskType = "reference"
)

func ParseTaskType(s string) (TaskType, bool) {
	switch TaskType(strings.ToLower(strings.TrimSpace(s))) {
	case TaskSummarize, "summary", "summarization":
		return TaskSummarize, true
	case TaskAnswer, "qa", "question":
		return TaskAnswer, true
	case TaskReference:
		return TaskReference, true
	}
	return "", false
}

type Document struct {
	DocumentID string    `json:"document_id"`
	Filename   string    `json:"filename"`
	Title      string    `json:"title,omitempty"`
	PageCount  int       `json:"page_count"`
	PageOffset int       `json:"page_offset"`
	Status     string    `json:"status"`
	FailReason string    `json:"fail_reason,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Section is a named, contiguous page range of a document. Pages are
// 1-based and inclusive.
type Section struct {
	DocumentID string `json:"document_id,omitempty"`
	Index      int    `json:"index"`
	Title      string `json:"title"`
	Text       string `json:"text"`
	StartPage  int    `json:"start_page"`
	EndPage    int    `json:"end_page"`
}

// Candidate is one model's answer to one task invocation.
type Candidate struct {
	ModelID   string `json:"model_id"`
	Text      string `json:"text"`
	Status    Status `json:"status"`
	ErrorKind string `json:"error_kind,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

// Valid reports whether the candidate may vote in consensus.
func (c Candidate) Valid() bool {
	return c.Status == StatusOK && strings.TrimSpace(c.Text) != ""
}

// ConsensusRun is the persisted audit record of one evaluation.
type ConsensusRun struct {
	RunID       string             `json:"run_id"`
	DocumentID  string             `json:"document_id,omitempty"`
	Task        TaskType           `json:"task"`
	Prompt      string             `json:"prompt"`
	Models      []string           `json:"models"`
	BestModelID string             `json:"best_model_id,omitempty"`
	BestText    string             `json:"best_text"`
	Reason      string             `json:"reason,omitempty"`
	Scores      map[string]float64 `json:"scores"`
	Matrix      [][]float64        `json:"matrix"`
	Candidates  []Candidate        `json:"candidates"`
	CreatedAt   time.Time          `json:"created_at"`
}
