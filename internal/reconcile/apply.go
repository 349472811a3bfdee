// pattern: Imperative Shell

package reconcile

import (
	"context"

	"projsync/internal/registry"
)

// Apply performs the decided mutations in order. Each mutation succeeds or
// fails on its own; failures never undo earlier mutations. Once ctx is done
// the remaining mutations fail with its error.
func (r *Resolution) Apply(ctx context.Context, reg registry.Registry) ([]Outcome, error) {
	if !r.Done() {
		return nil, ErrUnresolved
	}

	outcomes := make([]Outcome, 0, len(r.mutations))
	for _, m := range r.mutations {
		o := Outcome{Mutation: m}
		if err := ctx.Err(); err != nil {
			o.Err = err
		} else {
			switch m.Op {
			case OpDelete:
				o.Err = reg.Delete(ctx, m.ID)
			case OpRename:
				o.Err = reg.Rename(ctx, m.ID, m.Name)
			case OpRegister:
				var rec registry.Record
				rec, o.Err = reg.Create(ctx, registry.NewRecord{
					Name:         m.Name,
					RelativePath: m.Path,
					DirExists:    true,
				})
				o.RecordID = rec.ID
			}
		}
		if o.Err != nil {
			o.Error = o.Err.Error()
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, nil
}

// Summary tallies outcomes.
type Summary struct {
	Deleted    int `json:"deleted"`
	Renamed    int `json:"renamed"`
	Registered int `json:"registered"`
	Failed     int `json:"failed"`
}

// Summarize counts successful mutations per op and failures.
func Summarize(outcomes []Outcome) Summary {
	var s Summary
	for _, o := range outcomes {
		if o.Err != nil {
			s.Failed++
			continue
		}
		switch o.Mutation.Op {
		case OpDelete:
			s.Deleted++
		case OpRename:
			s.Renamed++
		case OpRegister:
			s.Registered++
		}
	}
	return s
}
