package app

import "sync"

// uiLoop runs tasks one at a time on a dedicated goroutine. Annotation
// mutations, mode-switch clears and stale checks all run here, so they are
// serialized with respect to each other.
type uiLoop struct {
	tasks chan func()
	done  chan struct{}
	exit  chan struct{}
	once  sync.Once
}

func newUILoop(buffer int) *uiLoop {
	l := &uiLoop{
		tasks: make(chan func(), buffer),
		done:  make(chan struct{}),
		exit:  make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *uiLoop) run() {
	defer close(l.exit)
	for {
		select {
		case fn := <-l.tasks:
			fn()
		case <-l.done:
			// Run what was queued before stop.
			for {
				select {
				case fn := <-l.tasks:
					fn()
				default:
					return
				}
			}
		}
	}
}

// Do queues fn. It returns false if the loop has stopped.
func (l *uiLoop) Do(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}

	select {
	case l.tasks <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Sync queues fn and waits for it to finish. It returns false if the loop
// stopped before fn ran. Must not be called from the loop itself.
func (l *uiLoop) Sync(fn func()) bool {
	ran := make(chan struct{})
	if !l.Do(func() {
		fn()
		close(ran)
	}) {
		return false
	}

	select {
	case <-ran:
		return true
	case <-l.exit:
		select {
		case <-ran:
			return true
		default:
			return false
		}
	}
}

// stop runs the remaining queued tasks and ends the loop.
func (l *uiLoop) stop() {
	l.once.Do(func() {
		close(l.done)
	})
	<-l.exit
}
