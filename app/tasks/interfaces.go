package tasks

// TaskSchedulerInterface defines the interface for task scheduling
// operations. The main application uses it to manage background
// processing; tasks use it to enqueue follow-up work.
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
	TriggerRun(sourceName string) error
}
