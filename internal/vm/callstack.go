package vm

// frame is one activation record: the routine's locals, where to resume
// the caller, where to store the routine's result (nil for call_*n
// variants), and the depth of the shared value stack at call time so a
// throw can unwind straight back to a catching frame.
type frame struct {
	returnPC  uint32
	store     *uint8
	locals    []uint16
	numArgs   uint8
	stackBase int
}

// callStack is the Call Stack of spec.md §5: a LIFO of activation
// records. It starts empty: top-level code runs with no frame, so it has
// no locals and returning from it is a fault.
type callStack struct {
	frames []*frame
}

func newCallStack() *callStack {
	return &callStack{}
}

func (c *callStack) push(f *frame) {
	c.frames = append(c.frames, f)
}

// pop removes and returns the innermost frame. It is a Fault to pop
// when the call stack is empty (returning from the top-level routine).
func (c *callStack) pop() (*frame, error) {
	if len(c.frames) == 0 {
		return nil, &Fault{Reason: "return from an empty call stack"}
	}
	f := c.frames[len(c.frames)-1]
	c.frames = c.frames[:len(c.frames)-1]
	return f, nil
}

func (c *callStack) top() (*frame, error) {
	if len(c.frames) == 0 {
		return nil, &Fault{Reason: "no active routine frame"}
	}
	return c.frames[len(c.frames)-1], nil
}

// depth is the number of frames currently on the call stack, used by
// the catch/throw pair to capture and rewind to a specific point.
func (c *callStack) depth() int {
	return len(c.frames)
}

// unwindTo pops frames until the call stack is exactly depth frames
// deep, for throw's non-local exit back to the frame catch captured.
func (c *callStack) unwindTo(depth int) (*frame, error) {
	if depth < 0 || depth > len(c.frames) {
		return nil, &Fault{Reason: "throw target is not on the call stack"}
	}
	c.frames = c.frames[:depth]
	if depth == 0 {
		return nil, nil
	}
	return c.frames[depth-1], nil
}
