package pipeline

import "time"

// Result is the outcome for one article.
type Result struct {
	ArticleID string `json:"article_id" yaml:"article_id"`
	Title     string `json:"title" yaml:"title"`
	State     State  `json:"state" yaml:"state"`
	// Stage is the state the article was in when it failed.
	Stage  State    `json:"stage,omitempty" yaml:"stage,omitempty"`
	Reason string   `json:"reason,omitempty" yaml:"reason,omitempty"`
	Links  []string `json:"links,omitempty" yaml:"links,omitempty"`
	Err    error    `json:"-" yaml:"-"`
}

func (r Result) skip(reason string) Result {
	r.State = StateSkipped
	r.Reason = reason
	return r
}

func (r Result) fail(err error) Result {
	r.Stage = r.State
	r.State = StateFailed
	r.Reason = err.Error()
	r.Err = err
	return r
}

// Summary accumulates one run. Succeeded+Skipped+Failed always equals Total.
type Summary struct {
	RunID     string        `json:"run_id" yaml:"run_id"`
	StartedAt time.Time     `json:"started_at" yaml:"started_at"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
	Succeeded int           `json:"succeeded" yaml:"succeeded"`
	Skipped   int           `json:"skipped" yaml:"skipped"`
	Failed    int           `json:"failed" yaml:"failed"`
	Total     int           `json:"total" yaml:"total"`
	Results   []Result      `json:"results" yaml:"results"`
}

func (s *Summary) add(r Result) {
	switch r.State {
	case StateSaved:
		s.Succeeded++
	case StateSkipped:
		s.Skipped++
	default:
		s.Failed++
	}
	s.Total++
	s.Results = append(s.Results, r)
}
