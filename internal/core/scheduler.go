package core

// Triple indexes one element of templates × platforms × editors.
type Triple struct {
	Template int
	Platform int
	Editor   int
}

// Scheduler decides the order jobs are generated and written in.
type Scheduler struct{}

func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Triples enumerates the product with templates outermost and editors
// innermost, the order jobs appear in the templates file.
func (s *Scheduler) Triples(templates, platforms, editors int) []Triple {
	if templates <= 0 || platforms <= 0 || editors <= 0 {
		return nil
	}
	out := make([]Triple, 0, templates*platforms*editors)
	for t := 0; t < templates; t++ {
		for p := 0; p < platforms; p++ {
			for e := 0; e < editors; e++ {
				out = append(out, Triple{Template: t, Platform: p, Editor: e})
			}
		}
	}
	return out
}
