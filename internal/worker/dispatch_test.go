package worker_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/breatheroute/aircheck/internal/worker"
)

func newDispatcher(refresher *fakeRefresher, cities ...string) *worker.Dispatcher {
	job := newJob(refresher, worker.RefreshConfig{Cities: cities, Concurrency: 2, Timeout: time.Second})
	return worker.NewDispatcher(job, zerolog.Nop())
}

func TestDispatcher_RefreshCity(t *testing.T) {
	refresher := &fakeRefresher{}
	d := newDispatcher(refresher, "Amsterdam")

	err := d.Dispatch(context.Background(), []byte(`{"job_type":"refresh_city","city":"Lyon"}`))

	assert.NoError(t, err)
	assert.Equal(t, []string{"Lyon"}, refresher.visited)
}

func TestDispatcher_RefreshCity_Failure(t *testing.T) {
	d := newDispatcher(&fakeRefresher{}, "Amsterdam")

	err := d.Dispatch(context.Background(), []byte(`{"job_type":"refresh_city","city":"fail-x"}`))

	assert.Error(t, err)
	assert.False(t, worker.ShouldAck(err, zerolog.Nop()))
}

func TestDispatcher_RefreshAll(t *testing.T) {
	t.Run("mostly healthy", func(t *testing.T) {
		refresher := &fakeRefresher{}
		d := newDispatcher(refresher, "Amsterdam", "empty-1", "fail-1")

		err := d.Dispatch(context.Background(), []byte(`{"job_type":"refresh_all"}`))

		assert.NoError(t, err)
		assert.Equal(t, int32(3), refresher.calls.Load())
	})

	t.Run("mostly failing", func(t *testing.T) {
		d := newDispatcher(&fakeRefresher{}, "Amsterdam", "fail-1", "fail-2")

		err := d.Dispatch(context.Background(), []byte(`{"job_type":"refresh_all"}`))

		assert.ErrorContains(t, err, "too many refresh failures: 2/3")
	})
}

func TestDispatcher_HealthCheck(t *testing.T) {
	t.Run("defaults to first city", func(t *testing.T) {
		refresher := &fakeRefresher{}
		d := newDispatcher(refresher, "Rotterdam", "Delhi")

		assert.NoError(t, d.Dispatch(context.Background(), []byte(`{"job_type":"health_check"}`)))
		assert.Equal(t, []string{"Rotterdam"}, refresher.visited)
	})

	t.Run("explicit city", func(t *testing.T) {
		refresher := &fakeRefresher{}
		d := newDispatcher(refresher, "Rotterdam")

		err := d.Dispatch(context.Background(), []byte(`{"job_type":"health_check","city":"fail-health"}`))

		assert.ErrorContains(t, err, "health check failed")
		assert.Equal(t, []string{"fail-health"}, refresher.visited)
	})
}

func TestDispatcher_PoisonMessages(t *testing.T) {
	d := newDispatcher(&fakeRefresher{}, "Amsterdam")

	tests := map[string]struct {
		data string
		want error
	}{
		"malformed":        {`{not json`, worker.ErrInvalidMessage},
		"missing city":     {`{"job_type":"refresh_city"}`, worker.ErrInvalidMessage},
		"unknown job":      {`{"job_type":"evaluate_alerts"}`, worker.ErrUnknownJob},
		"missing job type": {`{}`, worker.ErrUnknownJob},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			err := d.Dispatch(context.Background(), []byte(tt.data))

			assert.ErrorIs(t, err, tt.want)
			assert.True(t, worker.ShouldAck(err, zerolog.Nop()))
		})
	}
}

func TestShouldAck_Success(t *testing.T) {
	assert.True(t, worker.ShouldAck(nil, zerolog.Nop()))
}

func TestDispatcher_DefaultCities(t *testing.T) {
	refresher := &fakeRefresher{}
	d := newDispatcher(refresher)

	assert.NoError(t, d.Dispatch(context.Background(), []byte(`{"job_type":"health_check"}`)))
	assert.Equal(t, []string{worker.DefaultCities()[0]}, refresher.visited)
}
