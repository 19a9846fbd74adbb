package core

// Pipeline is the set of jobs one generation pass writes to one file.
// Jobs keep the order they were generated in.
type Pipeline struct {
	Path string
	Jobs []*Job
}

// Job returns the job with the given id, or nil.
func (p *Pipeline) Job(id string) *Job {
	for _, j := range p.Jobs {
		if j.ID == id {
			return j
		}
	}
	return nil
}
