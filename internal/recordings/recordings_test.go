package recordings

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/aura-webinar/coordinator/internal/models"
)

func TestFromMetadata(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	rec := FromMetadata(models.RecordingMetadata{SessionID: "s1", StartedAt: start, EndedAt: start.Add(90 * time.Second)})
	require.Equal(t, "s1", rec.SessionID)
	require.Equal(t, int64(90), rec.DurationSeconds)
	require.Equal(t, models.RecordingStatusPending, rec.Status)
	require.NotEqual(t, rec.ID, FromMetadata(models.RecordingMetadata{}).ID)

	backwards := FromMetadata(models.RecordingMetadata{SessionID: "s1", StartedAt: start, EndedAt: start.Add(-time.Second)})
	require.Zero(t, backwards.DurationSeconds)
}

type fakeLister struct {
	list []models.Recording
	err  error
}

func (f fakeLister) ListBySession(_ context.Context, _ string) ([]models.Recording, error) {
	return f.list, f.err
}

const sid = "5c1f3b0e-8a77-4c0e-b7a2-3d9e1f2a4b6c"

func list(h *Handler, id string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/sessions/:id/recordings", h.ListBySession)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sessions/"+id+"/recordings", nil))
	return w
}

func TestListBySession(t *testing.T) {
	rec := FromMetadata(models.RecordingMetadata{SessionID: sid, StartedAt: time.Now().Add(-time.Minute), EndedAt: time.Now()})
	w := list(NewHandler(fakeLister{list: []models.Recording{*rec}}, nil), sid)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data struct {
			Recordings []models.Recording `json:"recordings"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data.Recordings, 1)
	require.Equal(t, rec.ID, body.Data.Recordings[0].ID)
}

func TestListBySession_Errors(t *testing.T) {
	require.Equal(t, http.StatusBadRequest, list(NewHandler(fakeLister{}, nil), "x").Code)
	require.Equal(t, http.StatusInternalServerError, list(NewHandler(fakeLister{err: errors.New("boom")}, nil), sid).Code)
}
