package proc

import "runtime"

// ptrace(2) requires every request concerning a given tracee to come
// from the same OS thread that issued PTRACE_ATTACH or forked the child
// that requested PTRACE_TRACEME. This package pins one goroutine to one
// OS thread with runtime.LockOSThread and routes every ptrace request,
// and Launch's fork of a traced child, through it over a channel, so
// callers never have to think about thread affinity themselves.
var (
	ptraceChan     chan func()
	ptraceDoneChan chan struct{}
)

func execOnPtraceThread(fn func()) {
	ptraceChan <- fn
	<-ptraceDoneChan
}

func handlePtraceFuncs() {
	runtime.LockOSThread()

	for fn := range ptraceChan {
		fn()
		ptraceDoneChan <- struct{}{}
	}
}

func init() {
	ptraceChan = make(chan func())
	ptraceDoneChan = make(chan struct{})
	go handlePtraceFuncs()
}
