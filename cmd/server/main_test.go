package main

import (
	"context"
	"net/http"
	"testing"
	"time"

	"link-shortener/internal/model"
	"link-shortener/internal/service"
	"link-shortener/internal/sweeper"
	"link-shortener/internal/testutils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShutdown_AfterListenFailureFlushesStatistics(t *testing.T) {
	log := testutils.DiscardLogger()
	store := testutils.NewMemoryStore()
	store.Put(model.Link{ID: "abc", TargetURL: "https://example.com/page", Expiration: time.Now().Add(time.Hour)})
	store.SaveStatisticsDelay = 50 * time.Millisecond

	svc := service.NewService(store, log)
	svc.StatisticsTimeout = time.Second
	sw := sweeper.New(store, sweeper.DefaultSchedule, time.Second, log)
	require.NoError(t, sw.Start())

	srv := &http.Server{Addr: "256.0.0.1:0"}
	require.Error(t, srv.ListenAndServe())

	_, err := svc.Redirect(context.Background(), "abc", nil, nil)
	require.NoError(t, err)

	shutdown(srv, sw, svc, log, time.Second)
	assert.Len(t, store.Events(), 1)
}
