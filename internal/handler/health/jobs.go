package health

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dwarvesf/paylink-backend/internal/consts"
	"github.com/dwarvesf/paylink-backend/internal/monitoring"
)

// criticalJobs make the service unhealthy once they fail repeatedly; other
// failing jobs only degrade it.
var criticalJobs = []string{
	consts.JobNameExpirePaymentLinks,
	consts.JobNameIndexDeposits,
}

const criticalFailureThreshold = 3

// Jobs handles the background jobs health check endpoint
// @Summary Background jobs health check
// @Description Reports cron job status, stalls and failure streaks
// @Tags health
// @Produce json
// @Success 200 {object} JobsHealthResponse
// @Success 206 {object} JobsHealthResponse
// @Failure 503 {object} JobsHealthResponse
// @Router /api/v1/health/jobs [get]
func (h *HealthHandler) Jobs(c *gin.Context) {
	start := time.Now()

	if h.jobStatusManager == nil {
		c.JSON(httpStatus(statusUnhealthy), JobsHealthResponse{
			Status:    statusUnhealthy,
			Timestamp: start,
			Jobs:      map[string]monitoring.JobStatus{},
		})
		return
	}

	jobs := h.jobStatusManager.GetAllJobStatuses()
	summary := h.jobStatusManager.GetJobsSummary()
	status := jobsStatus(jobs, summary)

	response := JobsHealthResponse{
		Status:     status,
		Timestamp:  start,
		Jobs:       jobs,
		Summary:    summary,
		DurationMs: time.Since(start).Milliseconds(),
	}
	if status != statusHealthy {
		h.logger.Warn("[Health][Jobs] background jobs not healthy", map[string]string{
			"status":         status,
			"unhealthy_jobs": fmt.Sprintf("%d", summary.UnhealthyJobs),
			"stalled_jobs":   fmt.Sprintf("%d", summary.StalledJobs),
		})
	}
	c.JSON(httpStatus(status), response)
}

func jobsStatus(jobs map[string]monitoring.JobStatus, summary monitoring.JobsSummary) string {
	if summary.StalledJobs > 0 {
		return statusUnhealthy
	}
	if summary.UnhealthyJobs == 0 {
		return statusHealthy
	}
	for _, name := range criticalJobs {
		job, ok := jobs[name]
		if ok && job.Status == monitoring.JobStatusFailed && job.ConsecutiveFailures >= criticalFailureThreshold {
			return statusUnhealthy
		}
	}
	return statusDegraded
}
