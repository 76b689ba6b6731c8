package sessionlog

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

type fakeLister struct {
	rows []models.AttendanceRow
	err  error
}

func (f fakeLister) ListBySession(_ context.Context, _ string) ([]models.AttendanceRow, error) {
	return f.rows, f.err
}

const sid = "0b7e6c3e-5d0e-4a8e-9d6b-2f1c2a3b4c5d"

func get(h *Handler, id string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/sessions/:id/attendance", h.GetAttendance)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sessions/"+id+"/attendance", nil))
	return w
}

func TestGetAttendance(t *testing.T) {
	joined := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	left := joined.Add(40 * time.Minute)
	rows := []models.AttendanceRow{
		{ParticipantID: "a1", DisplayName: "Ana", Role: models.RoleAttendee, JoinedAt: joined, LeftAt: &left, WatchSeconds: 2400},
		{ParticipantID: "m1", DisplayName: "Prof", Role: models.RoleModerator, JoinedAt: joined},
	}
	w := get(NewHandler(fakeLister{rows: rows}, nil), sid)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data struct {
			Attendance []models.AttendanceRow `json:"attendance"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data.Attendance, 2)
	require.Equal(t, int64(2400), body.Data.Attendance[0].WatchSeconds)
	require.Nil(t, body.Data.Attendance[1].LeftAt)
}

func TestGetAttendance_Empty(t *testing.T) {
	w := get(NewHandler(fakeLister{}, nil), sid)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"attendance":[]`)
}

func TestGetAttendance_Errors(t *testing.T) {
	require.Equal(t, http.StatusBadRequest, get(NewHandler(fakeLister{}, nil), "not-a-uuid").Code)
	require.Equal(t, http.StatusInternalServerError, get(NewHandler(fakeLister{err: errors.New("db down")}, nil), sid).Code)
}
