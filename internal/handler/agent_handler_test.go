package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxlane/voice-platform/internal/domain"
	"github.com/voxlane/voice-platform/internal/providers"
	"github.com/voxlane/voice-platform/internal/repository"
)

type fakeAgentRepo struct {
	agents    map[string]*domain.AgentConfig
	createErr error
	updateErr error
}

func newFakeAgentRepo() *fakeAgentRepo {
	return &fakeAgentRepo{agents: make(map[string]*domain.AgentConfig)}
}

func (f *fakeAgentRepo) Create(ctx context.Context, agent *domain.AgentConfig) error {
	if f.createErr != nil {
		return f.createErr
	}
	if agent.ID == "" {
		agent.ID = uuid.NewString()
	}
	cp := *agent
	f.agents[agent.ID] = &cp
	return nil
}

func (f *fakeAgentRepo) GetByID(ctx context.Context, id string) (*domain.AgentConfig, error) {
	agent, ok := f.agents[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *agent
	return &cp, nil
}

func (f *fakeAgentRepo) GetByShareCode(ctx context.Context, code string) (*domain.AgentConfig, error) {
	for _, agent := range f.agents {
		if agent.IsPublic && agent.ShareCode != nil && *agent.ShareCode == code {
			cp := *agent
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeAgentRepo) GetByUserID(ctx context.Context, userID string) ([]*domain.AgentConfig, error) {
	var out []*domain.AgentConfig
	for _, agent := range f.agents {
		if agent.UserID == userID {
			cp := *agent
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeAgentRepo) Update(ctx context.Context, agent *domain.AgentConfig) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	if _, ok := f.agents[agent.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *agent
	f.agents[agent.ID] = &cp
	return nil
}

func (f *fakeAgentRepo) Delete(ctx context.Context, id string) error {
	if _, ok := f.agents[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.agents, id)
	return nil
}

type fakeOAuthRepo struct {
	conns map[string]*domain.OAuthConnection
}

func newFakeOAuthRepo() *fakeOAuthRepo {
	return &fakeOAuthRepo{conns: make(map[string]*domain.OAuthConnection)}
}

func (f *fakeOAuthRepo) key(userID, provider string) string { return userID + "/" + provider }

func (f *fakeOAuthRepo) Upsert(ctx context.Context, conn *domain.OAuthConnection) error {
	cp := *conn
	f.conns[f.key(conn.UserID, conn.Provider)] = &cp
	return nil
}

func (f *fakeOAuthRepo) Get(ctx context.Context, userID, provider string) (*domain.OAuthConnection, error) {
	conn, ok := f.conns[f.key(userID, provider)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *conn
	return &cp, nil
}

func (f *fakeOAuthRepo) Delete(ctx context.Context, userID, provider string) error {
	k := f.key(userID, provider)
	if _, ok := f.conns[k]; !ok {
		return repository.ErrNotFound
	}
	delete(f.conns, k)
	return nil
}

type fakeTeardown struct {
	calls []string
	err   error
}

func (f *fakeTeardown) Teardown(ctx context.Context, agentID string) error {
	f.calls = append(f.calls, agentID)
	return f.err
}

type agentTestEnv struct {
	router    *mux.Router
	agentRepo *fakeAgentRepo
	oauthRepo *fakeOAuthRepo
	teardown  *fakeTeardown
}

func newAgentTestEnv() *agentTestEnv {
	env := &agentTestEnv{
		agentRepo: newFakeAgentRepo(),
		oauthRepo: newFakeOAuthRepo(),
		teardown:  &fakeTeardown{},
	}
	h := NewAgentHandler(env.agentRepo, env.oauthRepo, providers.Default(), env.teardown)

	router := mux.NewRouter()
	router.HandleFunc("/api/shared/{code}", h.GetSharedAgent).Methods("GET")

	user := router.PathPrefix("/api").Subrouter()
	user.Use(UserAuthMiddleware)
	user.HandleFunc("/agents", h.CreateAgent).Methods("POST")
	user.HandleFunc("/agents", h.ListAgents).Methods("GET")
	user.HandleFunc("/agents/{id}", h.GetAgent).Methods("GET")
	user.HandleFunc("/agents/{id}", h.UpdateAgent).Methods("PUT")
	user.HandleFunc("/agents/{id}", h.DeleteAgent).Methods("DELETE")
	user.HandleFunc("/agents/{id}/tools", h.GetAgentTools).Methods("GET")

	env.router = router
	return env
}

func (env *agentTestEnv) do(method, path, userID string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if userID != "" {
		req.Header.Set("X-User-Id", userID)
	}
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	return rr
}

func (env *agentTestEnv) seedAgent(userID string, mutate func(*domain.AgentConfig)) *domain.AgentConfig {
	agent := &domain.AgentConfig{
		ID:           uuid.NewString(),
		UserID:       userID,
		Name:         "Support Bot",
		Voice:        domain.DefaultVoice,
		Greeting:     domain.DefaultGreeting,
		LLMModel:     domain.DefaultLLMModel,
		STTModel:     domain.DefaultSTTModel,
		TTSModel:     domain.DefaultTTSModel,
		EnabledTools: []string{"end_call"},
	}
	if mutate != nil {
		mutate(agent)
	}
	env.agentRepo.agents[agent.ID] = agent
	return agent
}

func TestCreateAgent_AppliesDefaults(t *testing.T) {
	env := newAgentTestEnv()

	rr := env.do("POST", "/api/agents", "user-1", map[string]interface{}{
		"name": "  Receptionist  ",
	})

	require.Equal(t, http.StatusCreated, rr.Code)

	var agent domain.AgentConfig
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&agent))
	assert.Equal(t, "Receptionist", agent.Name)
	assert.Equal(t, "user-1", agent.UserID)
	assert.Equal(t, domain.DefaultVoice, agent.Voice)
	assert.Equal(t, domain.DefaultLLMModel, agent.LLMModel)
	assert.Equal(t, domain.DefaultSTTModel, agent.STTModel)
	assert.Equal(t, domain.DefaultTTSModel, agent.TTSModel)
	assert.False(t, agent.IsPublic)
	assert.Nil(t, agent.ShareCode)
}

func TestCreateAgent_PublicGetsShareCode(t *testing.T) {
	env := newAgentTestEnv()

	rr := env.do("POST", "/api/agents", "user-1", map[string]interface{}{
		"name":     "Demo",
		"is_public": true,
	})

	require.Equal(t, http.StatusCreated, rr.Code)

	var agent domain.AgentConfig
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&agent))
	require.NotNil(t, agent.ShareCode)
	assert.Len(t, *agent.ShareCode, domain.ShareCodeLength)
}

func TestCreateAgent_RejectsBlankName(t *testing.T) {
	env := newAgentTestEnv()

	rr := env.do("POST", "/api/agents", "user-1", map[string]interface{}{
		"name": "   ",
	})

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCreateAgent_RejectsUnknownModel(t *testing.T) {
	env := newAgentTestEnv()

	rr := env.do("POST", "/api/agents", "user-1", map[string]interface{}{
		"name":     "Bad",
		"llm_model": "acme/unknown-model",
	})

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Empty(t, env.agentRepo.agents)
}

func TestCreateAgent_RequiresUserHeader(t *testing.T) {
	env := newAgentTestEnv()

	rr := env.do("POST", "/api/agents", "", map[string]interface{}{"name": "X"})

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestGetAgent_NotFound(t *testing.T) {
	env := newAgentTestEnv()

	rr := env.do("GET", "/api/agents/"+uuid.NewString(), "user-1", nil)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestGetAgent_OtherOwnerForbidden(t *testing.T) {
	env := newAgentTestEnv()
	agent := env.seedAgent("user-1", nil)

	rr := env.do("GET", "/api/agents/"+agent.ID, "user-2", nil)

	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestListAgents_EmptyIsArray(t *testing.T) {
	env := newAgentTestEnv()

	rr := env.do("GET", "/api/agents", "user-1", nil)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "[]\n", rr.Body.String())
}

func TestUpdateAgent_TogglePublicIssuesAndClearsShareCode(t *testing.T) {
	env := newAgentTestEnv()
	agent := env.seedAgent("user-1", nil)

	rr := env.do("PUT", "/api/agents/"+agent.ID, "user-1", map[string]interface{}{
		"is_public": true,
	})
	require.Equal(t, http.StatusOK, rr.Code)

	stored := env.agentRepo.agents[agent.ID]
	require.NotNil(t, stored.ShareCode)
	firstCode := *stored.ShareCode

	// Re-sending isPublic=true must not rotate the code.
	rr = env.do("PUT", "/api/agents/"+agent.ID, "user-1", map[string]interface{}{
		"is_public": true,
	})
	require.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, env.agentRepo.agents[agent.ID].ShareCode)
	assert.Equal(t, firstCode, *env.agentRepo.agents[agent.ID].ShareCode)

	rr = env.do("PUT", "/api/agents/"+agent.ID, "user-1", map[string]interface{}{
		"is_public": false,
	})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Nil(t, env.agentRepo.agents[agent.ID].ShareCode)
}

func TestUpdateAgent_PartialUpdateKeepsOtherFields(t *testing.T) {
	env := newAgentTestEnv()
	agent := env.seedAgent("user-1", func(a *domain.AgentConfig) {
		a.Instructions = "Be polite."
	})

	rr := env.do("PUT", "/api/agents/"+agent.ID, "user-1", map[string]interface{}{
		"voice": "verse",
	})

	require.Equal(t, http.StatusOK, rr.Code)
	stored := env.agentRepo.agents[agent.ID]
	assert.Equal(t, "verse", stored.Voice)
	assert.Equal(t, "Be polite.", stored.Instructions)
	assert.Equal(t, "Support Bot", stored.Name)
}

func TestDeleteAgent_TeardownFailureStillDeletes(t *testing.T) {
	env := newAgentTestEnv()
	env.teardown.err = errors.New("sip unavailable")
	agent := env.seedAgent("user-1", nil)

	rr := env.do("DELETE", "/api/agents/"+agent.ID, "user-1", nil)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, []string{agent.ID}, env.teardown.calls)
	assert.NotContains(t, env.agentRepo.agents, agent.ID)
}

func TestGetSharedAgent_ProjectsPublicFields(t *testing.T) {
	env := newAgentTestEnv()
	code := "ABCDEFGHJK"
	env.seedAgent("user-1", func(a *domain.AgentConfig) {
		a.IsPublic = true
		a.ShareCode = &code
		a.Instructions = "secret operator notes"
	})

	rr := env.do("GET", "/api/shared/"+code, "", nil)

	require.Equal(t, http.StatusOK, rr.Code)
	var view domain.SharedAgentView
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&view))
	assert.Equal(t, code, view.ShareCode)
	assert.Equal(t, "Support Bot", view.Name)
	assert.NotContains(t, rr.Body.String(), "secret operator notes")
}

func TestGetSharedAgent_UnknownCode(t *testing.T) {
	env := newAgentTestEnv()

	rr := env.do("GET", "/api/shared/NOPE123456", "", nil)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestGetAgentTools_OAuthGating(t *testing.T) {
	env := newAgentTestEnv()
	agent := env.seedAgent("user-1", func(a *domain.AgentConfig) {
		a.EnabledTools = []string{"end_call", "calendar_create_event"}
	})

	rr := env.do("GET", "/api/agents/"+agent.ID+"/tools", "user-1", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var toolList []map[string]interface{}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&toolList))
	for _, tool := range toolList {
		if tool["name"] == "calendar_create_event" {
			assert.Equal(t, false, tool["available"])
			assert.Equal(t, false, tool["enabled"])
		}
	}

	env.oauthRepo.Upsert(context.Background(), &domain.OAuthConnection{
		UserID:   "user-1",
		Provider: domain.OAuthProviderGoogle,
	})

	rr = env.do("GET", "/api/agents/"+agent.ID+"/tools", "user-1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	toolList = nil
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&toolList))
	for _, tool := range toolList {
		if tool["name"] == "calendar_create_event" {
			assert.Equal(t, true, tool["available"])
		}
	}
}
