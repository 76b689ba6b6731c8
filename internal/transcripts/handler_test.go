package transcripts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/aura-webinar/coordinator/internal/models"
)

type fakeSessions map[string]*models.SessionRecord

func (f fakeSessions) GetByID(_ context.Context, id string) (*models.SessionRecord, error) {
	return f[id], nil
}

type fakePresigner struct{ err error }

func (f fakePresigner) PresignTranscript(_ context.Context, key string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "https://signed.example/" + key, nil
}

const sid = "7d4f2f59-2b3b-4a61-9a41-6f6a8c1f9e11"

func serve(h *Handler, id string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/sessions/:id/transcript", h.GetTranscript)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sessions/"+id+"/transcript", nil))
	return w
}

func TestGetTranscript(t *testing.T) {
	sessions := fakeSessions{sid: {TranscriptKey: "transcripts/" + sid + "/CS101.json"}}
	w := serve(NewHandler(sessions, fakePresigner{}, nil), sid)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Success bool `json:"success"`
		Data    struct {
			DownloadURL string `json:"download_url"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.True(t, body.Success)
	require.Equal(t, "https://signed.example/transcripts/"+sid+"/CS101.json", body.Data.DownloadURL)
}

func TestGetTranscript_Errors(t *testing.T) {
	require.Equal(t, http.StatusBadRequest, serve(NewHandler(fakeSessions{}, fakePresigner{}, nil), "nope").Code)
	require.Equal(t, http.StatusNotFound, serve(NewHandler(fakeSessions{}, fakePresigner{}, nil), sid).Code)

	notExported := fakeSessions{sid: {}}
	require.Equal(t, http.StatusNotFound, serve(NewHandler(notExported, fakePresigner{}, nil), sid).Code)

	exported := fakeSessions{sid: {TranscriptKey: "k"}}
	require.Equal(t, http.StatusInternalServerError, serve(NewHandler(exported, fakePresigner{err: errors.New("boom")}, nil), sid).Code)
}
