package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/kmrl/opsboard/internal/jobs"
	"github.com/kmrl/opsboard/internal/mlsched"
	"github.com/kmrl/opsboard/internal/platform/httpx"
)

type stubWarmer struct {
	n   int
	err error
}

func (s stubWarmer) Warm(context.Context) (int, error) { return s.n, s.err }

type stubTrainer struct{ calls int }

func (s *stubTrainer) TrainNow(context.Context) error {
	s.calls++
	return nil
}

type stubGenerator struct {
	dates []string
	err   error
}

func (s *stubGenerator) Generate(_ context.Context, date string) (mlsched.Schedule, error) {
	s.dates = append(s.dates, date)
	if s.err != nil {
		return mlsched.Schedule{}, s.err
	}
	return mlsched.Schedule{Date: date, Engine: "rules", Schedule: []mlsched.Assignment{{TrainID: "TR-4521"}}}, nil
}

func testMetrics() *jobmetrics.Metrics {
	return jobmetrics.NewMetrics(prometheus.NewRegistry())
}

func TestWarmCacheJob(t *testing.T) {
	job := NewWarmCacheJob(stubWarmer{n: 7}, nil, testMetrics())
	assert.NoError(t, job.Handle(context.Background(), NewWarmCacheTask()))

	job = NewWarmCacheJob(stubWarmer{err: errors.New("redis down")}, nil, testMetrics())
	assert.EqualError(t, job.Handle(context.Background(), NewWarmCacheTask()), "redis down")

	var unset *WarmCacheJob
	assert.Error(t, unset.Handle(context.Background(), NewWarmCacheTask()))
}

func TestTrainJob(t *testing.T) {
	trainer := &stubTrainer{}
	job := &TrainJob{Trainer: trainer, Metrics: testMetrics()}
	require.NoError(t, job.Handle(context.Background(), NewTrainTask()))
	assert.Equal(t, 1, trainer.calls)
}

func TestScheduleJobDefaultsToTomorrow(t *testing.T) {
	gen := &stubGenerator{}
	job := NewScheduleJob(gen, nil, testMetrics())
	job.clock = func() time.Time { return time.Date(2024, 3, 7, 2, 0, 0, 0, time.UTC) }

	task, err := NewGenerateScheduleTask(GenerateSchedulePayload{})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	task, err = NewGenerateScheduleTask(GenerateSchedulePayload{Date: "2024-04-01"})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	assert.Equal(t, []string{"2024-03-08", "2024-04-01"}, gen.dates)
}

func TestScheduleJobErrors(t *testing.T) {
	job := NewScheduleJob(&stubGenerator{}, nil, testMetrics())
	err := job.Handle(context.Background(), asynq.NewTask(TaskGenerateSchedule, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	job = NewScheduleJob(&stubGenerator{err: fmt.Errorf("%w: bad date", httpx.ErrValidation)}, nil, testMetrics())
	task, _ := NewGenerateScheduleTask(GenerateSchedulePayload{Date: "03/07/2024"})
	assert.ErrorIs(t, job.Handle(context.Background(), task), asynq.SkipRetry)

	job = NewScheduleJob(&stubGenerator{err: errors.New("engine down")}, nil, testMetrics())
	err = job.Handle(context.Background(), task)
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestNewTask(t *testing.T) {
	for _, typ := range TaskTypes {
		task, err := NewTask(typ)
		require.NoError(t, err)
		assert.Equal(t, typ, task.Type())
	}
	_, err := NewTask("mail:send")
	assert.Error(t, err)

	task, err := NewGenerateScheduleTask(GenerateSchedulePayload{Date: "2024-03-07"})
	require.NoError(t, err)
	var payload GenerateSchedulePayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, "2024-03-07", payload.Date)
}

func TestDefaultCron(t *testing.T) {
	cron, err := DefaultCron()
	require.NoError(t, err)
	require.Len(t, cron, 2)
	assert.Equal(t, "*/5 * * * *", cron[0].Spec)
	assert.Equal(t, TaskFleetWarmCache, cron[0].Task.Type())
	assert.Equal(t, "0 2 * * *", cron[1].Spec)
	assert.Equal(t, TaskGenerateSchedule, cron[1].Task.Type())
}

func TestNewWorkerRequiresHandlers(t *testing.T) {
	_, err := NewWorker(WorkerConfig{RedisOpts: asynq.RedisClientOpt{Addr: "127.0.0.1:0"}})
	assert.Error(t, err)
}

func TestClientEnqueueTrain(t *testing.T) {
	mr := miniredis.RunT(t)
	opts := asynq.RedisClientOpt{Addr: mr.Addr()}
	client := NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })

	var enqueuer mlsched.TrainEnqueuer = client
	require.NoError(t, enqueuer.EnqueueTrain(context.Background()))

	info, err := client.Enqueue(context.Background(), NewWarmCacheTask())
	require.NoError(t, err)
	assert.Equal(t, TaskFleetWarmCache, info.Type)
	assert.Equal(t, QueueDefault, info.Queue)
}

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) { return s.info, s.err }

func TestHealth(t *testing.T) {
	rr := httptest.NewRecorder()
	NewHandler(nil, nil).health(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"queue":"default","pending":0,"active":0,"scheduled":0,"retry":0,"failed_today":0}`, rr.Body.String())

	rr = httptest.NewRecorder()
	NewHandler(stubInspector{info: &asynq.QueueInfo{Queue: "default", Pending: 3, Retry: 1}}, nil).health(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"pending":3`)

	rr = httptest.NewRecorder()
	NewHandler(stubInspector{err: errors.New("redis down")}, nil).health(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
