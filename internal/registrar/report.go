package registrar

// Outcome is the terminal state of one definition within a pass.
type Outcome int

const (
	OutcomeFailed Outcome = iota
	OutcomeSkipped
	OutcomeRegistered
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRegistered:
		return "registered"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is the terminal record for one definition. Err is set only for
// OutcomeFailed.
type Result struct {
	Key      string
	TenantID string
	JobID    string
	Version  int
	Outcome  Outcome
	Err      error
}

func (r Result) failed(err error) Result {
	r.Outcome = OutcomeFailed
	r.Err = err
	return r
}

// Report is what one pass hands back to the caller: every result plus
// tallies. Failures degrade only their own definition; the caller decides
// whether any of them matter.
type Report struct {
	PassID     string
	Results    []Result
	Registered int
	Skipped    int
	Failed     int
}

func (rep *Report) add(res Result) {
	rep.Results = append(rep.Results, res)
	switch res.Outcome {
	case OutcomeRegistered:
		rep.Registered++
	case OutcomeSkipped:
		rep.Skipped++
	case OutcomeFailed:
		rep.Failed++
	}
}

// Failures returns only the failed results.
func (rep *Report) Failures() []Result {
	var out []Result
	for _, r := range rep.Results {
		if r.Outcome == OutcomeFailed {
			out = append(out, r)
		}
	}
	return out
}
