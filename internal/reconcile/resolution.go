// pattern: Functional Core

package reconcile

import (
	"errors"
	"fmt"
	"slices"

	"projsync/internal/discovery"
	"projsync/internal/registry"
)

// Errors returned by Resolution.
var (
	ErrInvalidChoice = errors.New("choice not offered")
	ErrResolved      = errors.New("resolution already complete")
	ErrUnresolved    = errors.New("resolution has unanswered requests")
)

// Request asks for one decision. Bulk requests cover a whole set; item
// requests carry exactly one of Record, Mismatch or Candidate.
type Request struct {
	Set     Set      `json:"set"`
	Bulk    bool     `json:"bulk"`
	Options []Choice `json:"options"`
	Default Choice   `json:"default"`
	// Count is the size of the set for bulk requests.
	Count int `json:"count,omitempty"`
	// Index and Total position an item request within its review.
	Index int `json:"index,omitempty"`
	Total int `json:"total,omitempty"`

	Record    *registry.Record     `json:"record,omitempty"`
	Mismatch  *Mismatch            `json:"mismatch,omitempty"`
	Candidate *discovery.Candidate `json:"candidate,omitempty"`
}

// Offers reports whether c is one of the request's options.
func (r Request) Offers(c Choice) bool {
	return slices.Contains(r.Options, c)
}

// Prompt is a one-line question for hosts that render requests as text.
func (r Request) Prompt() string {
	if r.Bulk {
		switch r.Set {
		case SetOrphaned:
			return fmt.Sprintf("%d registered project(s) no longer exist on disk", r.Count)
		case SetMismatched:
			return fmt.Sprintf("%d project(s) have a directory name that differs from the registry", r.Count)
		default:
			return fmt.Sprintf("%d unregistered project(s) found on disk", r.Count)
		}
	}
	prefix := fmt.Sprintf("[%d/%d] ", r.Index, r.Total)
	switch {
	case r.Record != nil:
		return prefix + fmt.Sprintf("Missing: %s (%s)", r.Record.Name, r.Record.RelativePath)
	case r.Mismatch != nil:
		return prefix + fmt.Sprintf("Renamed: %q is now %q (%s)", r.Mismatch.Record.Name, r.Mismatch.ActualName, r.Mismatch.Record.RelativePath)
	case r.Candidate != nil:
		return prefix + fmt.Sprintf("Unregistered: %s", r.Candidate.Path)
	default:
		return prefix
	}
}

// Op is the kind of a registry mutation.
type Op string

const (
	OpDelete   Op = "delete"
	OpRename   Op = "rename"
	OpRegister Op = "register"
)

// Mutation is a registry change decided during resolution.
type Mutation struct {
	Op   Op     `json:"op"`
	ID   int64  `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
	Path string `json:"path"`
}

// String describes the mutation for logs and dry runs.
func (m Mutation) String() string {
	switch m.Op {
	case OpDelete:
		return fmt.Sprintf("delete #%d %s", m.ID, m.Path)
	case OpRename:
		return fmt.Sprintf("rename #%d %s -> %q", m.ID, m.Path, m.Name)
	default:
		return fmt.Sprintf("register %s as %q", m.Path, m.Name)
	}
}

// Outcome is the result of applying one mutation.
type Outcome struct {
	Mutation Mutation `json:"mutation"`
	Err      error    `json:"-"`
	Error    string   `json:"error,omitempty"`
	// RecordID is set for successful registrations.
	RecordID int64 `json:"record_id,omitempty"`
}

// Resolution walks a Result one decision at a time and collects the
// mutations the answers imply. Nothing touches the registry until Apply.
type Resolution struct {
	result    *Result
	queue     []Request
	mutations []Mutation
	answered  int
}

// NewResolution queues one bulk request per non-empty set, in Sets order.
func NewResolution(result *Result) *Resolution {
	res := &Resolution{result: result}
	counts := result.Counts()
	for _, set := range Sets {
		n := 0
		switch set {
		case SetOrphaned:
			n = counts.Orphaned
		case SetMismatched:
			n = counts.Mismatched
		case SetUnregistered:
			n = counts.Unregistered
		}
		if n == 0 {
			continue
		}
		res.queue = append(res.queue, Request{
			Set:     set,
			Bulk:    true,
			Options: BulkOptions(set),
			Default: Skip,
			Count:   n,
		})
	}
	return res
}

// Result returns the result being resolved.
func (r *Resolution) Result() *Result {
	return r.result
}

// Next returns the pending request, if any. It does not consume it.
func (r *Resolution) Next() (Request, bool) {
	if len(r.queue) == 0 {
		return Request{}, false
	}
	return r.queue[0], true
}

// Done reports whether every request has been answered.
func (r *Resolution) Done() bool {
	return len(r.queue) == 0
}

// Progress returns how many requests were answered and how many are queued.
// Reviewing a set adds requests, so pending may grow.
func (r *Resolution) Progress() (answered, pending int) {
	return r.answered, len(r.queue)
}

// Answer resolves the pending request.
func (r *Resolution) Answer(c Choice) error {
	req, ok := r.Next()
	if !ok {
		return ErrResolved
	}
	if !req.Offers(c) {
		return fmt.Errorf("%w: %q for %s", ErrInvalidChoice, c, req.Set)
	}
	r.queue = r.queue[1:]
	r.answered++

	if req.Bulk {
		r.answerBulk(req.Set, c)
	} else {
		r.answerItem(req, c)
	}
	return nil
}

// AnswerDefault answers the pending request with its default.
func (r *Resolution) AnswerDefault() error {
	req, ok := r.Next()
	if !ok {
		return ErrResolved
	}
	return r.Answer(req.Default)
}

// Mutations returns the mutations decided so far, in decision order.
func (r *Resolution) Mutations() []Mutation {
	return slices.Clone(r.mutations)
}

func (r *Resolution) answerBulk(set Set, c Choice) {
	switch c {
	case ReviewEach:
		r.queue = append(r.itemRequests(set), r.queue...)
	case DeleteAll:
		for _, rec := range r.result.Orphaned {
			r.mutations = append(r.mutations, deleteOf(rec))
		}
	case RenameAll:
		for _, m := range r.result.Mismatched {
			r.mutations = append(r.mutations, renameOf(m))
		}
	case RegisterAll:
		for _, c := range r.result.Unregistered {
			r.mutations = append(r.mutations, registerOf(c))
		}
	}
}

func (r *Resolution) answerItem(req Request, c Choice) {
	switch {
	case c == Delete && req.Record != nil:
		r.mutations = append(r.mutations, deleteOf(*req.Record))
	case c == UseFilesystemName && req.Mismatch != nil:
		r.mutations = append(r.mutations, renameOf(*req.Mismatch))
	case c == Register && req.Candidate != nil:
		r.mutations = append(r.mutations, registerOf(*req.Candidate))
	}
}

func (r *Resolution) itemRequests(set Set) []Request {
	var reqs []Request
	add := func(req Request) {
		req.Set = set
		req.Options = ItemOptions(set)
		req.Default = itemDefaults[set]
		reqs = append(reqs, req)
	}
	switch set {
	case SetOrphaned:
		for i := range r.result.Orphaned {
			add(Request{Record: &r.result.Orphaned[i]})
		}
	case SetMismatched:
		for i := range r.result.Mismatched {
			add(Request{Mismatch: &r.result.Mismatched[i]})
		}
	case SetUnregistered:
		for i := range r.result.Unregistered {
			add(Request{Candidate: &r.result.Unregistered[i]})
		}
	}
	for i := range reqs {
		reqs[i].Index = i + 1
		reqs[i].Total = len(reqs)
	}
	return reqs
}

func deleteOf(rec registry.Record) Mutation {
	return Mutation{Op: OpDelete, ID: rec.ID, Name: rec.Name, Path: rec.RelativePath}
}

func renameOf(m Mismatch) Mutation {
	return Mutation{Op: OpRename, ID: m.Record.ID, Name: m.ActualName, Path: m.Record.RelativePath}
}

func registerOf(c discovery.Candidate) Mutation {
	return Mutation{Op: OpRegister, Name: c.Name, Path: c.Path}
}
