package monitoring

import (
	"context"
	"errors"
	"fmt"
	"net"
	"runtime/debug"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"
	"gorm.io/gorm"

	"github.com/dwarvesf/paylink-backend/internal/chainrpc"
	"github.com/dwarvesf/paylink-backend/internal/utils/logger"
	"github.com/dwarvesf/paylink-backend/internal/utils/webhook"
)

type JobExecutionStatus string

const (
	JobStatusPending JobExecutionStatus = "pending"
	JobStatusRunning JobExecutionStatus = "running"
	JobStatusSuccess JobExecutionStatus = "success"
	JobStatusFailed  JobExecutionStatus = "failed"
	JobStatusStalled JobExecutionStatus = "stalled"
)

// JobStatus is the snapshot of one cron job served by /health/jobs.
type JobStatus struct {
	JobName             string             `json:"job_name"`
	Status              JobExecutionStatus `json:"status"`
	Timeout             time.Duration      `json:"timeout_ms"`
	LastRunTime         time.Time          `json:"last_run_time"`
	LastDuration        time.Duration      `json:"last_duration_ms"`
	AverageExecution    time.Duration      `json:"average_execution_ms"`
	MaxExecutionTime    time.Duration      `json:"max_execution_ms"`
	SuccessCount        int64              `json:"success_count"`
	FailureCount        int64              `json:"failure_count"`
	ConsecutiveFailures int64              `json:"consecutive_failures"`
	LastError           string             `json:"last_error,omitempty"`
	ErrorType           string             `json:"error_type,omitempty"`
	UpdatedAt           time.Time          `json:"updated_at"`
}

type JobsSummary struct {
	TotalJobs      int       `json:"total_jobs"`
	RunningJobs    int       `json:"running_jobs"`
	HealthyJobs    int       `json:"healthy_jobs"`
	UnhealthyJobs  int       `json:"unhealthy_jobs"`
	StalledJobs    int       `json:"stalled_jobs"`
	LastUpdateTime time.Time `json:"last_update_time"`
}

type trackedJob struct {
	JobStatus
	stalledAfter  time.Duration
	totalDuration time.Duration
}

// JobStatusManager tracks the cron jobs of one process. A running job is
// reported stalled once it runs for twice its timeout.
type JobStatusManager struct {
	mu      sync.RWMutex
	jobs    map[string]*trackedJob
	logger  *logger.Logger
	metrics *BackgroundJobMetrics
	now     func() time.Time
}

func NewJobStatusManager(logger *logger.Logger, metrics *BackgroundJobMetrics) *JobStatusManager {
	return &JobStatusManager{
		jobs:    make(map[string]*trackedJob),
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

// Run refreshes the stalled-jobs gauge until ctx is done.
func (jsm *JobStatusManager) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			jsm.detectStalledJobs()
		}
	}
}

func (jsm *JobStatusManager) RegisterJob(jobName string, timeout time.Duration) {
	jsm.mu.Lock()
	defer jsm.mu.Unlock()

	if _, exists := jsm.jobs[jobName]; exists {
		return
	}
	stalledAfter := 2 * timeout
	if stalledAfter <= 0 {
		stalledAfter = 5 * time.Minute
	}
	jsm.jobs[jobName] = &trackedJob{
		JobStatus: JobStatus{
			JobName:   jobName,
			Status:    JobStatusPending,
			Timeout:   timeout,
			UpdatedAt: jsm.now(),
		},
		stalledAfter: stalledAfter,
	}

	jsm.logger.Info("[JobStatusManager] job registered", map[string]string{
		"job_name": jobName,
		"timeout":  timeout.String(),
	})
}

func (jsm *JobStatusManager) StartJob(jobName string) {
	jsm.mu.Lock()
	defer jsm.mu.Unlock()

	job, exists := jsm.jobs[jobName]
	if !exists {
		jsm.logger.Warn("[JobStatusManager] start of unregistered job", map[string]string{"job_name": jobName})
		return
	}
	now := jsm.now()
	job.Status = JobStatusRunning
	job.LastRunTime = now
	job.UpdatedAt = now
	jsm.metrics.activeJobs.Inc()
}

// CompleteJob records the outcome of the run started by StartJob.
func (jsm *JobStatusManager) CompleteJob(jobName string, err error) {
	jsm.complete(jobName, err, classifyJobError(err))
}

func (jsm *JobStatusManager) complete(jobName string, err error, errorType string) {
	jsm.mu.Lock()
	defer jsm.mu.Unlock()

	job, exists := jsm.jobs[jobName]
	if !exists || job.Status != JobStatusRunning && job.Status != JobStatusStalled {
		jsm.logger.Error("[JobStatusManager] completion of a job that is not running", map[string]string{
			"job_name": jobName,
		})
		return
	}
	jsm.metrics.activeJobs.Dec()

	now := jsm.now()
	duration := now.Sub(job.LastRunTime)
	job.LastDuration = duration
	job.UpdatedAt = now
	job.totalDuration += duration
	if duration > job.MaxExecutionTime {
		job.MaxExecutionTime = duration
	}

	if err != nil {
		job.Status = JobStatusFailed
		job.FailureCount++
		job.ConsecutiveFailures++
		job.LastError = err.Error()
		job.ErrorType = errorType
	} else {
		job.Status = JobStatusSuccess
		job.SuccessCount++
		job.ConsecutiveFailures = 0
		job.LastError = ""
		job.ErrorType = ""
	}
	job.AverageExecution = job.totalDuration / time.Duration(job.SuccessCount+job.FailureCount)

	result := string(job.Status)
	jsm.metrics.jobRuns.WithLabelValues(jobName, result).Inc()
	jsm.metrics.jobDuration.WithLabelValues(jobName, result).Observe(duration.Seconds())

	if err != nil {
		jsm.logger.Error("[JobStatusManager] job failed", map[string]string{
			"job_name":             jobName,
			"duration":             duration.String(),
			"error":                err.Error(),
			"error_type":           errorType,
			"consecutive_failures": strconv.FormatInt(job.ConsecutiveFailures, 10),
		})
		return
	}
	jsm.logger.Debug("[JobStatusManager] job completed", map[string]string{
		"job_name": jobName,
		"duration": duration.String(),
	})
}

func (jsm *JobStatusManager) GetJobStatus(jobName string) (*JobStatus, bool) {
	jsm.mu.RLock()
	defer jsm.mu.RUnlock()

	job, exists := jsm.jobs[jobName]
	if !exists {
		return nil, false
	}
	status := jsm.snapshot(job)
	return &status, true
}

func (jsm *JobStatusManager) GetAllJobStatuses() map[string]JobStatus {
	jsm.mu.RLock()
	defer jsm.mu.RUnlock()

	result := make(map[string]JobStatus, len(jsm.jobs))
	for name, job := range jsm.jobs {
		result[name] = jsm.snapshot(job)
	}
	return result
}

func (jsm *JobStatusManager) GetJobsSummary() JobsSummary {
	statuses := jsm.GetAllJobStatuses()

	summary := JobsSummary{
		TotalJobs:      len(statuses),
		LastUpdateTime: jsm.now(),
	}
	for _, status := range statuses {
		switch status.Status {
		case JobStatusRunning:
			summary.RunningJobs++
		case JobStatusSuccess:
			summary.HealthyJobs++
		case JobStatusFailed:
			summary.UnhealthyJobs++
		case JobStatusStalled:
			summary.StalledJobs++
		}
	}
	return summary
}

// snapshot must be called with the lock held.
func (jsm *JobStatusManager) snapshot(job *trackedJob) JobStatus {
	status := job.JobStatus
	if status.Status == JobStatusRunning && jsm.now().Sub(status.LastRunTime) > job.stalledAfter {
		status.Status = JobStatusStalled
	}
	return status
}

func (jsm *JobStatusManager) detectStalledJobs() {
	jsm.mu.Lock()
	defer jsm.mu.Unlock()

	now := jsm.now()
	stalled := 0
	for name, job := range jsm.jobs {
		if job.Status == JobStatusRunning && now.Sub(job.LastRunTime) > job.stalledAfter {
			job.Status = JobStatusStalled
			job.UpdatedAt = now
			jsm.logger.Error("[JobStatusManager] job stalled", map[string]string{
				"job_name":      name,
				"last_run_time": job.LastRunTime.Format(time.RFC3339),
			})
		}
		if job.Status == JobStatusStalled {
			stalled++
		}
	}
	jsm.metrics.stalledJobs.Set(float64(stalled))
}

// InstrumentedJob adapts a context-aware job to cron's func() with status
// tracking, a deadline and panic recovery.
type InstrumentedJob struct {
	jobName       string
	jobFunc       func(ctx context.Context) error
	statusManager *JobStatusManager
	logger        *logger.Logger
	timeout       time.Duration
	webhookClient *webhook.Client
	webhookURL    string
}

type JobOption func(*InstrumentedJob)

// WithUptimeWebhook calls url after every successful run.
func WithUptimeWebhook(client *webhook.Client, url string) JobOption {
	return func(ij *InstrumentedJob) {
		ij.webhookClient = client
		ij.webhookURL = url
	}
}

func NewInstrumentedJob(
	jobName string,
	jobFunc func(ctx context.Context) error,
	statusManager *JobStatusManager,
	logger *logger.Logger,
	timeout time.Duration,
	opts ...JobOption,
) *InstrumentedJob {
	statusManager.RegisterJob(jobName, timeout)

	ij := &InstrumentedJob{
		jobName:       jobName,
		jobFunc:       jobFunc,
		statusManager: statusManager,
		logger:        logger,
		timeout:       timeout,
	}
	for _, opt := range opts {
		opt(ij)
	}
	return ij
}

type jobOutcome struct {
	err       error
	errorType string
}

// Execute returns when the job finishes or its timeout passes. A timed out
// job keeps running in the background with a cancelled context.
func (ij *InstrumentedJob) Execute() {
	ij.statusManager.StartJob(ij.jobName)

	ctx, cancel := context.WithTimeout(context.Background(), ij.timeout)
	defer cancel()

	done := make(chan jobOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ij.logger.Error("[InstrumentedJob] job panicked", map[string]string{
					"job_name": ij.jobName,
					"panic":    fmt.Sprintf("%v", r),
					"stack":    string(debug.Stack()),
				})
				done <- jobOutcome{err: fmt.Errorf("job panicked: %v", r), errorType: "panic"}
			}
		}()
		err := ij.jobFunc(ctx)
		done <- jobOutcome{err: err, errorType: classifyJobError(err)}
	}()

	var outcome jobOutcome
	select {
	case outcome = <-done:
	case <-ctx.Done():
		ij.statusManager.metrics.jobTimeouts.WithLabelValues(ij.jobName).Inc()
		outcome = jobOutcome{err: fmt.Errorf("job timeout after %v", ij.timeout), errorType: "timeout"}
	}

	ij.statusManager.complete(ij.jobName, outcome.err, outcome.errorType)

	if outcome.err == nil && ij.webhookClient != nil {
		if err := ij.webhookClient.Ping(context.Background(), ij.webhookURL); err != nil {
			ij.logger.Warn("[InstrumentedJob] uptime webhook failed", map[string]string{
				"job_name": ij.jobName,
				"error":    err.Error(),
			})
		}
	}
}

type BackgroundJobMetrics struct {
	jobDuration         *prometheus.HistogramVec
	jobRuns             *prometheus.CounterVec
	activeJobs          prometheus.Gauge
	stalledJobs         prometheus.Gauge
	pendingPaymentLinks prometheus.Gauge
	jobTimeouts         *prometheus.CounterVec
}

func NewBackgroundJobMetrics() *BackgroundJobMetrics {
	return &BackgroundJobMetrics{
		jobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "paylink_background_job_duration_seconds",
				Help:    "Background job execution duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120},
			},
			[]string{"job_name", "status"},
		),
		jobRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paylink_background_job_runs_total",
				Help: "Total number of background job runs",
			},
			[]string{"job_name", "status"},
		),
		activeJobs: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "paylink_background_jobs_active",
				Help: "Number of currently running background jobs",
			},
		),
		stalledJobs: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "paylink_background_jobs_stalled",
				Help: "Number of stalled background jobs",
			},
		),
		pendingPaymentLinks: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "paylink_pending_payment_links",
				Help: "Payment links waiting for funds, as of the last expiry sweep",
			},
		),
		jobTimeouts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paylink_job_timeouts_total",
				Help: "Total job timeouts",
			},
			[]string{"job_name"},
		),
	}
}

func (m *BackgroundJobMetrics) MustRegister(registry prometheus.Registerer) {
	registry.MustRegister(
		m.jobDuration,
		m.jobRuns,
		m.activeJobs,
		m.stalledJobs,
		m.pendingPaymentLinks,
		m.jobTimeouts,
	)
}

// SetPendingPaymentLinks publishes the PENDING backlog seen by the expiry sweep.
func (m *BackgroundJobMetrics) SetPendingPaymentLinks(count int64) {
	m.pendingPaymentLinks.Set(float64(count))
}

func classifyJobError(err error) string {
	var netErr net.Error
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "circuit_open"
	case errors.Is(err, chainrpc.ErrUnknownChain), errors.Is(err, chainrpc.ErrReceiptNotFound):
		return "chain_rpc"
	case errors.Is(err, gorm.ErrRecordNotFound), errors.Is(err, gorm.ErrInvalidTransaction):
		return "database"
	case errors.As(err, &netErr):
		return "network"
	default:
		return "unknown"
	}
}
