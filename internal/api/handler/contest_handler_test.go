package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"codearena/internal/app/service"
	"codearena/internal/app/ws"
	"codearena/internal/common"
	"codearena/internal/common/security"
	"codearena/internal/domain/model"
	"codearena/internal/domain/repository"
	"codearena/internal/platform/config"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/gorilla/websocket"
)

type stubContestRepo struct {
	repository.ContestRepository
	contest *model.Contest
}

func (s *stubContestRepo) FindContestByID(ctx context.Context, id string) (*model.Contest, error) {
	if s.contest != nil && s.contest.ID == id {
		c := *s.contest
		return &c, nil
	}
	return nil, common.ErrNotFound
}

func (s *stubContestRepo) FindContestBySlug(ctx context.Context, slug string) (*model.Contest, error) {
	if s.contest != nil && s.contest.Slug == slug {
		c := *s.contest
		return &c, nil
	}
	return nil, common.ErrNotFound
}

func (s *stubContestRepo) GetProblems(ctx context.Context, contestID string) ([]model.ContestProblem, error) {
	return nil, nil
}

func (s *stubContestRepo) CountRegistrations(ctx context.Context, contestID string) (int, error) {
	return 0, nil
}

const testContestID = "7b6c2c34-0d6f-4a7e-9c1e-5f8a2d3b4c5d"

func newContestTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	config.AppConfig = &config.Config{JWTKey: []byte("test-key"), JWTExp: time.Hour}
	security.InitJWT()

	contest := &model.Contest{ID: testContestID, Slug: "weekly-round-1", Visible: true}
	svc := service.NewContestService(&stubContestRepo{contest: contest}, nil, nil, nil, nil)
	hub := ws.NewHub()

	r := chi.NewRouter()
	r.Use(jwtauth.Verifier(security.TokenAuth))
	r.Route("/ws", NewWSHandler(hub).RegisterRoutes)
	r.Route("/contests", NewContestHandler(svc, hub).RegisterRoutes)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func postAnnounce(t *testing.T, srv *httptest.Server, contestID, token, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/contests/"+contestID+"/announce", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("announce request: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestAnnounceReachesJoinedClients(t *testing.T) {
	srv := newContestTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]string{"type": "join_contest", "contest_id": testContestID}); err != nil {
		t.Fatalf("join: %v", err)
	}
	// The join is handled on the connection's read pump.
	time.Sleep(200 * time.Millisecond)

	token, err := security.GenerateToken("admin-1", model.RoleAdmin)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	resp := postAnnounce(t, srv, testContestID, token, `{"message":"round extended by 15 minutes"}`)
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("announce status = %d: %s", resp.StatusCode, body)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read announcement: %v", err)
	}
	var env ws.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if env.Type != ws.MsgAnnouncement || env.ContestID != testContestID {
		t.Errorf("envelope = %+v, want announcement for the contest room", env)
	}
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.Message != "round extended by 15 minutes" {
		t.Errorf("message = %q", payload.Message)
	}
}

func TestAnnounceRejectsNonAdminsAndEmptyMessages(t *testing.T) {
	srv := newContestTestServer(t)

	userToken, err := security.GenerateToken("user-1", model.RoleUser)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if resp := postAnnounce(t, srv, testContestID, userToken, `{"message":"hi"}`); resp.StatusCode != http.StatusForbidden {
		t.Errorf("non-admin announce status = %d, want 403", resp.StatusCode)
	}

	adminToken, err := security.GenerateToken("admin-1", model.RoleAdmin)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if resp := postAnnounce(t, srv, testContestID, adminToken, `{}`); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty announce status = %d, want 400", resp.StatusCode)
	}
	if resp := postAnnounce(t, srv, "missing", adminToken, `{"message":"hi"}`); resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown contest announce status = %d, want 404", resp.StatusCode)
	}
}
