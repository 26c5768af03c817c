//go:build linux

package cmd

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnitFile(t *testing.T) {
	unit := unitFile("/usr/local/bin/wsl-notifyd", "")
	assert.Contains(t, unit, "Type=notify\n")
	assert.Contains(t, unit, `ExecStart="/usr/local/bin/wsl-notifyd" serve`+"\n")
	assert.Contains(t, unit, "WantedBy=default.target")

	unit = unitFile("/opt/wsl notifyd/bin", "/home/me/notify.yaml")
	assert.Contains(t, unit, `ExecStart="/opt/wsl notifyd/bin" serve --config "/home/me/notify.yaml"`+"\n")
}

func fakeJob(result string, err error) (jobFunc, *[]string) {
	var calls []string
	return func(_ context.Context, name, mode string, ch chan<- string) (int, error) {
		calls = append(calls, name+":"+mode)
		if err != nil {
			return 0, err
		}
		if result != "" {
			ch <- result
		}
		return 1, nil
	}, &calls
}

func TestRunJob(t *testing.T) {
	ctx := context.Background()

	job, calls := fakeJob("done", nil)
	require.NoError(t, runJob(ctx, job, unitName))
	assert.Equal(t, []string{"wsl-notifyd.service:replace"}, *calls)

	job, _ = fakeJob("failed", nil)
	assert.ErrorContains(t, runJob(ctx, job, unitName), `finished with result "failed"`)

	queueErr := errors.New("unit not found")
	job, _ = fakeJob("", queueErr)
	assert.ErrorIs(t, runJob(ctx, job, unitName), queueErr)
}

func TestRunJobCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	job, _ := fakeJob("", nil)
	assert.ErrorIs(t, runJob(ctx, job, unitName), context.Canceled)
}
