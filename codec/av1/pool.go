/*
DESCRIPTION
  pool.go provides the pool of output picture tasks used by the AV1 decoder.
  Decoded frames are queued before output so that frames shown later through
  show_existing_frame can share or copy their pictures.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package av1

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/ausocean/hwdec/hw"
	"github.com/ausocean/hwdec/stream"
)

// listID identifies the list a task is on.
type listID int

const (
	listNone     listID = iota // Being decoded.
	listFree                   // Ready for reuse.
	listStarted                // Decoded, queued for output.
	listDecode                 // Dequeued, waiting to join an input.
	listFinished               // Output, possibly still referenced.
	listInput                  // Awaiting delivery with an input buffer.
)

// task is a picture buffer with its output bookkeeping. refCount counts the
// pending outputs of buf. A task made for show_existing_frame either shares
// the buffer of owner, or holds a copy when owner is -1.
type task struct {
	buf      hw.Buffer
	refCount int
	noShow   bool
	sef      bool
	owner    int
	list     listID
	in       *stream.Buffer
}

// pool holds tasks in an arena addressed by handle, and the lists they move
// between. que counts the tasks queued on the started list.
type pool struct {
	mu    sync.Mutex
	dev   hw.Device
	depth int

	tasks    []*task
	free     []int
	started  []int
	decode   []int
	finished []int
	inputs   map[*stream.Buffer][]int
	que      int
}

func newPool(dev hw.Device, depth int) *pool {
	return &pool{dev: dev, depth: depth, inputs: make(map[*stream.Buffer][]int)}
}

// alloc stores t in the arena and returns its handle.
func (p *pool) alloc(t *task) int {
	for h, v := range p.tasks {
		if v == nil {
			p.tasks[h] = t
			return h
		}
	}
	p.tasks = append(p.tasks, t)
	return len(p.tasks) - 1
}

// unlink removes task h from the list it is on.
func (p *pool) unlink(h int) {
	t := p.tasks[h]
	switch t.list {
	case listFree:
		p.free = remove(p.free, h)
	case listStarted:
		p.started = remove(p.started, h)
	case listDecode:
		p.decode = remove(p.decode, h)
	case listFinished:
		p.finished = remove(p.finished, h)
	case listInput:
		l := remove(p.inputs[t.in], h)
		if len(l) == 0 {
			delete(p.inputs, t.in)
		} else {
			p.inputs[t.in] = l
		}
	}
	t.list, t.in = listNone, nil
}

// link moves task h to the tail of list l. in names the input for listInput.
func (p *pool) link(h int, l listID, in *stream.Buffer) {
	p.unlink(h)
	t := p.tasks[h]
	t.list = l
	switch l {
	case listFree:
		p.free = append(p.free, h)
	case listStarted:
		p.started = append(p.started, h)
	case listDecode:
		p.decode = append(p.decode, h)
	case listFinished:
		p.finished = append(p.finished, h)
	case listInput:
		t.in = in
		p.inputs[in] = append(p.inputs[in], h)
	}
}

// drop removes task h from its list and the arena.
func (p *pool) drop(h int) {
	p.unlink(h)
	p.tasks[h] = nil
}

func remove(l []int, h int) []int {
	for i, v := range l {
		if v == h {
			return append(l[:i], l[i+1:]...)
		}
	}
	return l
}

// buffer returns the picture buffer of task h.
func (p *pool) buffer(h int) hw.Buffer {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tasks[h].buf
}

// need returns a task to decode into, reusing a free task or creating one
// with a new width by height buffer.
func (p *pool) need(width, height int) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.free) != 0 {
		h := p.free[0]
		p.unlink(h)
		p.tasks[h].refCount = 1
		return h, nil
	}

	b, err := p.dev.CreateBuffer(hw.BufferTemplate{
		Width:  width,
		Height: height,
		Format: p.dev.PreferredFormat(),
	})
	if err != nil {
		return -1, errors.Wrap(err, "could not create task buffer")
	}
	return p.alloc(&task{buf: b, refCount: 1, owner: -1}), nil
}

// pending returns the reference count of the task decoded into b, or zero if
// there is none.
func (p *pool) pending(b hw.Buffer) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, t := range p.tasks {
		if t != nil && !t.sef && t.buf == b {
			return t.refCount
		}
	}
	return 0
}

// tidy frees finished tasks that are no longer referenced.
func (p *pool) tidy(refs *[numRefFrames]hw.Buffer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sort(refs)
}

// sort moves finished tasks that have no pending output and are not held in
// a reference slot to the free list.
func (p *pool) sort(refs *[numRefFrames]hw.Buffer) {
	for _, h := range append([]int(nil), p.finished...) {
		t := p.tasks[h]
		if t.refCount == 0 && !isRef(t.buf, refs) {
			p.link(h, listFree, nil)
		}
	}
}

func isRef(b hw.Buffer, refs *[numRefFrames]hw.Buffer) bool {
	for _, r := range refs {
		if r != nil && r == b {
			return true
		}
	}
	return false
}

// search returns the first task on l holding b, or -1.
func (p *pool) search(l []int, b hw.Buffer) int {
	for _, h := range l {
		if p.tasks[h].buf == b {
			return h
		}
	}
	return -1
}

// searchPending returns the task holding b that has yet to be output, or -1.
func (p *pool) searchPending(b hw.Buffer) int {
	if h := p.search(p.started, b); h >= 0 {
		return h
	}
	if h := p.search(p.decode, b); h >= 0 {
		return h
	}
	for _, l := range p.inputs {
		if h := p.search(l, b); h >= 0 {
			return h
		}
	}
	return -1
}

// start queues task h on the started list. Once more than depth tasks are
// queued the oldest is moved to list dst, for listInput that of in, and true
// is returned.
func (p *pool) start(h int, dst listID, in *stream.Buffer) bool {
	p.que++
	p.link(h, listStarted, nil)
	if p.que <= p.depth {
		return false
	}
	p.link(p.started[0], dst, in)
	p.que--
	return true
}

// finish queues the decoded task h. When a task is dequeued and the input
// holds no further frames, the dequeued tasks join input in and true is
// returned.
func (p *pool) finish(h int, noShow bool, in *stream.Buffer, stacked bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tasks[h].noShow = noShow
	if !p.start(h, listDecode, in) {
		return false
	}
	if !stacked && in != nil {
		for _, d := range append([]int(nil), p.decode...) {
			p.link(d, listInput, in)
		}
	}
	return true
}

// abandon returns task h, taken by need but never queued, to the free list.
func (p *pool) abandon(h int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tasks[h].refCount = 0
	p.link(h, listFree, nil)
}

// showExisting queues a task to output the picture b once more. A pending
// task holding b has its buffer shared. Otherwise a finished task holding b
// has its picture copied to a new width by height buffer. It returns true if
// a task was dequeued to input in.
func (p *pool) showExisting(in *stream.Buffer, refs *[numRefFrames]hw.Buffer, b hw.Buffer, width, height int) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.sort(refs)

	t := &task{sef: true, owner: -1}
	if e := p.searchPending(b); e >= 0 {
		p.tasks[e].refCount++
		t.buf = b
		t.owner = e
	} else if e := p.search(p.finished, b); e >= 0 {
		nb, err := p.dev.CreateBuffer(hw.BufferTemplate{
			Width:  width,
			Height: height,
			Format: p.dev.PreferredFormat(),
		})
		if err != nil {
			return false, errors.Wrap(err, "could not create picture copy")
		}
		err = p.dev.CopyPlane(nb, b, 0, width, height)
		if err == nil {
			err = p.dev.CopyPlane(nb, b, 1, width/2, height/2)
		}
		if err != nil {
			nb.Destroy()
			return false, errors.Wrap(err, "could not copy picture")
		}
		p.tasks[e].refCount = 0
		t.buf = nb
		t.refCount = 1
	} else {
		return false, nil
	}

	h := p.alloc(t)
	p.sort(refs)
	if p.que >= p.depth && in != nil {
		for _, d := range append([]int(nil), p.decode...) {
			p.link(d, listInput, in)
		}
	}
	return p.start(h, listInput, in), nil
}

// next moves the oldest queued task to input in. It returns false if no task
// is queued.
func (p *pool) next(in *stream.Buffer) bool {
	switch {
	case len(p.decode) != 0:
		p.link(p.decode[0], listInput, in)
	case len(p.started) != 0:
		p.link(p.started[0], listInput, in)
		p.que--
	default:
		return false
	}
	return true
}

// deliver outputs the first task of input in to out using fill, and returns
// true if the input holds more output.
func (p *pool) deliver(in, out *stream.Buffer, fill func(hw.Buffer, *stream.Buffer) error) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	stacked := len(p.inputs[in]) > 1
	if len(p.inputs[in]) == 0 && !p.next(in) {
		out.Filled = 0
		return false
	}

	h := p.inputs[in][0]
	t := p.tasks[h]
	if t.noShow || t.buf == nil {
		t.noShow = false
		out.Filled = 0
	} else {
		fill(t.buf, out)
		out.Timestamp = in.Timestamp
	}

	switch {
	case t.sef && t.owner >= 0:
		if o := p.tasks[t.owner]; o != nil && o.refCount > 0 {
			o.refCount--
			p.link(t.owner, listFinished, nil)
		}
		p.drop(h)
	case t.sef:
		if t.buf != nil {
			t.buf.Destroy()
		}
		p.drop(h)
	case t.refCount > 0:
		t.refCount--
		p.link(h, listFinished, nil)
	}

	if in.EOS {
		return p.que > 0 || len(p.decode) != 0 || len(p.inputs[in]) != 0
	}
	return stacked
}

// freeInput destroys the tasks left on input in.
func (p *pool) freeInput(in *stream.Buffer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, h := range append([]int(nil), p.inputs[in]...) {
		p.destroy(h)
	}
}

// destroy drops task h, destroying its buffer unless it is shared. Tasks
// sharing the buffer of h are left without a picture.
func (p *pool) destroy(h int) {
	t := p.tasks[h]
	switch {
	case t.sef && t.owner >= 0:
		if o := p.tasks[t.owner]; o != nil && o.refCount > 0 {
			o.refCount--
		}
	case t.buf != nil:
		t.buf.Destroy()
		for _, a := range p.tasks {
			if a != nil && a.sef && a.owner == h {
				a.owner, a.buf = -1, nil
			}
		}
	}
	p.drop(h)
}

// release destroys all tasks. Shared tasks go first so that their owners
// remain.
func (p *pool) release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for h, t := range p.tasks {
		if t != nil && t.sef && t.owner >= 0 {
			p.destroy(h)
		}
	}
	for h, t := range p.tasks {
		if t != nil {
			p.destroy(h)
		}
	}
	p.que = 0
}
