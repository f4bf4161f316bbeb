package tasks

// TaskSchedulerInterface is what the server needs from the background
// scheduler.
//
//	scheduler := NewScheduler(collector, configCache, orchestrator, SchedulerConfig{...})
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.EnqueueTask(NewProcessArticleTask(id, orchestrator))
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
	QueueLength() int
}
