package types

// minQueueLen is smallest capacity that queue may have.
// Must be power of 2 for bitwise modulus: x % n == x & (n - 1).
const minQueueLen = 16

// Queue is a ring-buffer deque.
// It is not safe for concurrent use, owner provides locking.
type Queue struct {
	buf   []interface{}
	head  int
	tail  int
	count int
}

// NewQueue constructs and returns a new Queue.
func NewQueue() *Queue {
	return &Queue{
		buf: make([]interface{}, minQueueLen),
	}
}

// Length returns the number of elements currently stored in the queue.
func (q *Queue) Length() int {
	return q.count
}

// resize the queue to fit exactly twice its current contents
// this can result in shrinking if the queue is less than half-full
func (q *Queue) resize() {
	size := q.count << 1
	if size < minQueueLen {
		size = minQueueLen
	}

	newBuf := make([]interface{}, size)

	if q.tail > q.head {
		copy(newBuf, q.buf[q.head:q.tail])
	} else if q.count > 0 {
		n := copy(newBuf, q.buf[q.head:])
		copy(newBuf[n:], q.buf[:q.tail])
	}

	q.head = 0
	q.tail = q.count
	q.buf = newBuf
}

// Add puts an element on the end of the queue.
func (q *Queue) Add(elem interface{}) {
	if q.count == len(q.buf) {
		q.resize()
	}

	q.buf[q.tail] = elem
	// bitwise modulus
	q.tail = (q.tail + 1) & (len(q.buf) - 1)
	q.count++
}

// AddFront puts an element at the head of the queue.
func (q *Queue) AddFront(elem interface{}) {
	if q.count == len(q.buf) {
		q.resize()
	}

	q.head = (q.head - 1) & (len(q.buf) - 1)
	q.buf[q.head] = elem
	q.count++
}

// Get returns the element at index i in the queue. If the index is
// invalid, the call will panic. This method accepts both positive and
// negative index values. Index 0 refers to the first element, and
// index -1 refers to the last.
func (q *Queue) Get(i int) interface{} {
	// If indexing backwards, convert to positive index.
	if i < 0 {
		i += q.count
	}

	if i < 0 || i >= q.count {
		panic("queue: Get() called with index out of range")
	}

	// bitwise modulus
	return q.buf[(q.head+i)&(len(q.buf)-1)]
}

// Remove removes and returns the element from the front of the queue.
// Returns nil if queue is empty
func (q *Queue) Remove() interface{} {
	if q.count == 0 {
		return nil
	}

	ret := q.buf[q.head]
	q.buf[q.head] = nil
	// bitwise modulus
	q.head = (q.head + 1) & (len(q.buf) - 1)
	q.count--

	// Resize down if buffer 1/4 full.
	if len(q.buf) > minQueueLen && (q.count<<2) == len(q.buf) {
		q.resize()
	}

	return ret
}

// Clear drops all elements
func (q *Queue) Clear() {
	q.buf = make([]interface{}, minQueueLen)
	q.head = 0
	q.tail = 0
	q.count = 0
}
