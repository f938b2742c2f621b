package jobs

import (
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	cron "github.com/robfig/cron"
	"github.com/sirupsen/logrus"
)

// DefaultInterval is how often interval jobs are started.
const DefaultInterval = "@every 1s"

type Job interface {
	Name() string
	Run()
}

type CronJob interface {
	Schedule() string
	Job
}

// TaskExecutor runs interval jobs and cron jobs on one cron scheduler. A
// job never overlaps with itself: a tick that finds the previous run still
// going is skipped.
type TaskExecutor struct {
	cron            *cron.Cron
	interval        string
	jobs            []Job
	cronJobs        []CronJob
	runningJobs     mapset.Set[string]
	runningCronJobs mapset.Set[string]
	muJobs          sync.Mutex
	muCronJobs      sync.Mutex
}

func NewTaskExecutor(interval string, jobs []Job, cronJobs []CronJob) *TaskExecutor {
	if interval == "" {
		interval = DefaultInterval
	}

	return &TaskExecutor{
		cron:            cron.New(),
		interval:        interval,
		jobs:            jobs,
		cronJobs:        cronJobs,
		runningCronJobs: mapset.NewSet[string](),
		runningJobs:     mapset.NewSet[string](),
	}
}

// Run schedules every job and starts the scheduler in its own goroutine.
func (t *TaskExecutor) Run() error {
	for _, job := range t.cronJobs {
		job := job
		err := t.cron.AddFunc(job.Schedule(), func() {
			exclusive(&t.muCronJobs, t.runningCronJobs, job)
		})
		if err != nil {
			logrus.Errorf("failed to add task %s to cron: %v", job.Name(), err)
			return err
		}
	}

	for _, job := range t.jobs {
		job := job
		err := t.cron.AddFunc(t.interval, func() {
			exclusive(&t.muJobs, t.runningJobs, job)
		})
		if err != nil {
			logrus.Errorf("failed to add task %s to cron: %v", job.Name(), err)
			return err
		}
	}

	t.cron.Start()
	logrus.Infof("started %d interval tasks and %d cron tasks", len(t.jobs), len(t.cronJobs))

	return nil
}

func (t *TaskExecutor) Stop() {
	logrus.Infof("stopping all tasks")
	t.cron.Stop()
}

// exclusive runs the job unless a previous run is still going. It reports
// whether the job ran.
func exclusive(mu *sync.Mutex, running mapset.Set[string], job Job) bool {
	mu.Lock()
	if running.Contains(job.Name()) {
		mu.Unlock()
		logrus.Warnf("task %s is already running", job.Name())
		return false
	}
	running.Add(job.Name())
	mu.Unlock()

	defer func() {
		mu.Lock()
		defer mu.Unlock()
		running.Remove(job.Name())
	}()

	job.Run()

	return true
}
