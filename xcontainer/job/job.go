package job

// Do是多线程调用
type Do interface {
	DoJob() Done
}

// Done是主线程调用
type Done interface {
	DoReturn()
}

// Func adapts a function to Do.
type Func func() Done

func (f Func) DoJob() Done {
	return f()
}

// DoneFunc adapts a function to Done.
type DoneFunc func()

func (f DoneFunc) DoReturn() {
	f()
}
