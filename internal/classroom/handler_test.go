package classroom

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/aura-webinar/coordinator/internal/auth"
	"github.com/aura-webinar/coordinator/internal/middleware"
	"github.com/aura-webinar/coordinator/internal/models"
)

type apiBody struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

type api struct {
	t      *testing.T
	router *gin.Engine
	jwt    *auth.JWTService
}

func newAPI(t *testing.T) *api {
	t.Helper()
	gin.SetMode(gin.TestMode)
	coord, _ := newTestCoordinator(t, Config{})
	svc := auth.NewJWTService("secret", 1)
	h := NewHandler(coord, nil)

	r := gin.New()
	g := r.Group("/sessions", middleware.JWT(svc))
	g.POST("", middleware.RequireRole(models.RoleModerator), h.Create)
	g.GET("/:id", h.Get)
	g.POST("/:id/commands", h.Submit)
	g.GET("/:id/chat", h.ChatSince)
	return &api{t: t, router: r, jwt: svc}
}

func (a *api) do(method, path string, who models.Identity, body interface{}) (int, apiBody) {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	token, err := a.jwt.Generate(who)
	require.NoError(a.t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	var out apiBody
	require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return w.Code, out
}

func (a *api) createSession() string {
	a.t.Helper()
	code, body := a.do(http.MethodPost, "/sessions", host, gin.H{"course_code": "CS101", "title": "Intro"})
	require.Equal(a.t, http.StatusCreated, code, body.Error)
	var s models.Session
	require.NoError(a.t, json.Unmarshal(body.Data, &s))
	require.Equal(a.t, host.UserID, s.HostID)
	return s.ID
}

func (a *api) command(id string, who models.Identity, cmd models.Command) (int, apiBody) {
	return a.do(http.MethodPost, "/sessions/"+id+"/commands", who, cmd)
}

func TestHandler_CreateRequiresModerator(t *testing.T) {
	a := newAPI(t)
	code, _ := a.do(http.MethodPost, "/sessions", a1, gin.H{"course_code": "CS101", "title": "Intro"})
	require.Equal(t, http.StatusForbidden, code)

	code, _ = a.do(http.MethodPost, "/sessions", host, gin.H{"title": "Intro"})
	require.Equal(t, http.StatusBadRequest, code)
}

func TestHandler_CommandsAndSnapshot(t *testing.T) {
	a := newAPI(t)
	id := a.createSession()

	for _, who := range []models.Identity{host, a1} {
		code, body := a.command(id, who, models.Command{Kind: models.CommandJoin})
		require.Equal(t, http.StatusOK, code, body.Error)
	}
	code, body := a.command(id, a1, models.Command{Kind: models.CommandSendChatMessage, Text: "hello"})
	require.Equal(t, http.StatusOK, code, body.Error)
	var result struct {
		Events []models.Event `json:"events"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &result))
	require.Len(t, result.Events, 1)
	require.Equal(t, models.EventChatAppended, result.Events[0].Kind)

	code, body = a.do(http.MethodGet, "/sessions/"+id, a1, nil)
	require.Equal(t, http.StatusOK, code)
	var snap models.Snapshot
	require.NoError(t, json.Unmarshal(body.Data, &snap))
	require.Len(t, snap.Participants, 2)
	require.Len(t, snap.RecentChat, 1)
	require.EqualValues(t, 3, snap.LastEventSeq)

	code, body = a.do(http.MethodGet, "/sessions/"+id+"/chat?since=1", a1, nil)
	require.Equal(t, http.StatusOK, code)
	require.JSONEq(t, `{"messages":[]}`, string(body.Data))

	code, _ = a.do(http.MethodGet, "/sessions/"+id+"/chat?since=-1", a1, nil)
	require.Equal(t, http.StatusBadRequest, code)
}

func TestHandler_ErrorMapping(t *testing.T) {
	a := newAPI(t)
	id := a.createSession()
	for _, who := range []models.Identity{host, a1} {
		code, _ := a.command(id, who, models.Command{Kind: models.CommandJoin})
		require.Equal(t, http.StatusOK, code)
	}
	ghost := "ghost"

	cases := []struct {
		name     string
		who      models.Identity
		cmd      models.Command
		want     int
		wantCode string
	}{
		{"attendee force mute", a1, models.Command{Kind: models.CommandForceMuteAll}, http.StatusForbidden, "unauthorized"},
		{"spotlight unknown target", host, models.Command{Kind: models.CommandSpotlight, TargetID: &ghost}, http.StatusNotFound, "target_unavailable"},
		{"recording before live", host, models.Command{Kind: models.CommandToggleRecording}, http.StatusConflict, "not_live"},
		{"empty chat", a1, models.Command{Kind: models.CommandSendChatMessage, Text: ""}, http.StatusBadRequest, "invalid_input"},
		{"unknown command", a1, models.Command{Kind: "dance"}, http.StatusBadRequest, "invalid_input"},
		{"actor never joined", a2, models.Command{Kind: models.CommandRaiseHand}, http.StatusNotFound, "participant_not_found"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, body := a.command(id, tc.who, tc.cmd)
			require.Equal(t, tc.want, code, body.Error)
			require.Equal(t, tc.wantCode, body.Code)
			require.False(t, body.Success)
			require.NotEmpty(t, body.Error)
		})
	}

	code, _ := a.command(id, host, models.Command{Kind: models.CommandEndSession})
	require.Equal(t, http.StatusOK, code)
	code, _ = a.command(id, a1, models.Command{Kind: models.CommandRaiseHand})
	require.Equal(t, http.StatusConflict, code)

	code, _ = a.command("missing", a1, models.Command{Kind: models.CommandJoin})
	require.Equal(t, http.StatusNotFound, code)
}
