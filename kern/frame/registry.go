package frame

import "github.com/kernkit/kernkit/kern/machine"

// Registry is the process-wide directory of frame pools, kept in
// construction order. It exists so a frame can be released by number alone:
// the caller of ReleaseFrames does not need to know which pool handed the
// frame out. Passed explicitly; not a package singleton.
type Registry struct {
	head *Pool
	tail *Pool
}

// NewRegistry returns an empty pool registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// add links a pool at the tail.
func (r *Registry) add(p *Pool) {
	if r.head == nil {
		r.head = p
		r.tail = p
		return
	}
	r.tail.next = p
	r.tail = p
}

// Pools returns the registered pools in construction order.
func (r *Registry) Pools() []*Pool {
	var out []*Pool
	for p := r.head; p != nil; p = p.next {
		out = append(out, p)
	}
	return out
}

// ReleaseFrames frees the run headed at frameNo, dispatching to the unique
// pool whose range contains it. Halts when the frame belongs to no pool or
// is not the head of an allocated run.
func (r *Registry) ReleaseFrames(frameNo uint32) {
	for p := r.head; p != nil; p = p.next {
		if p.contains(frameNo) {
			p.releaseRun(frameNo)
			return
		}
	}
	machine.Halt("release of frame %d which belongs to no pool", frameNo)
}
