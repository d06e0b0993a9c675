package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmaster/taskhub/internal/application/services"
	"github.com/taskmaster/taskhub/internal/domain/entities"
	"github.com/taskmaster/taskhub/internal/infrastructure/config"
	"github.com/taskmaster/taskhub/internal/infrastructure/logger"
	"github.com/taskmaster/taskhub/internal/ports"
	"github.com/taskmaster/taskhub/internal/testutil"
)

type testAPI struct {
	echo  *echo.Echo
	store *testutil.MemoryStore
	pub   *testutil.RecordingPublisher

	userToken  string
	otherToken string
	adminToken string
	otherID    string
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Errors  []string        `json:"errors"`
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	log := logger.NewNop()
	store := testutil.NewMemoryStore()
	pub := &testutil.RecordingPublisher{}

	authSvc := services.NewAuthService(store.Users(), config.JWTConfig{Secret: "test", ExpiresIn: time.Hour, Issuer: "test"}, log)
	taskSvc := services.NewTaskService(store.Tasks(), store, pub, nil, log)
	userSvc := services.NewUserService(store.Users(), log)

	e := echo.New()
	e.Validator = NewValidator()
	e.HTTPErrorHandler = ErrorHandler(log)
	RegisterRoutes(e.Group("/api/v1"), authSvc, Handlers{
		Auth: NewAuthHandler(authSvc, log),
		Task: NewTaskHandler(taskSvc, log),
	}, log)

	api := &testAPI{echo: e, store: store, pub: pub}

	ctx := context.Background()
	_, err := userSvc.CreateUser(ctx, "Admin", "admin@example.com", "password123", "admin")
	require.NoError(t, err)

	api.userToken = api.register(t, "Uma", "uma@example.com")
	api.otherToken = api.register(t, "Oli", "oli@example.com")

	var login ports.AuthResponse
	rec := api.do(t, http.MethodPost, "/api/v1/auth/login", "", `{"email":"admin@example.com","password":"password123"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeData(t, rec, &login)
	api.adminToken = login.AccessToken

	other, err := store.Users().GetByEmail(ctx, "oli@example.com")
	require.NoError(t, err)
	api.otherID = other.ID.String()

	return api
}

func (a *testAPI) register(t *testing.T, name, email string) string {
	t.Helper()

	body := fmt.Sprintf(`{"name":%q,"email":%q,"password":"password123"}`, name, email)
	rec := a.do(t, http.MethodPost, "/api/v1/auth/register", "", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp ports.AuthResponse
	decodeData(t, rec, &resp)
	require.NotEmpty(t, resp.AccessToken)
	return resp.AccessToken
}

func (a *testAPI) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.echo.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	env := decode(t, rec)
	require.True(t, env.Success, rec.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, v))
}

type taskJSON struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Status       string `json:"status"`
	Priority     string `json:"priority"`
	AssignedTo   string `json:"assigned_to"`
	Version      int    `json:"version"`
	IsOverdue    bool   `json:"is_overdue"`
	Notification string `json:"notification"`
	Assignee     *struct {
		Name string `json:"name"`
	} `json:"assignee"`
}

func (a *testAPI) createTask(t *testing.T, token, body string) taskJSON {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/v1/tasks", token, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var task taskJSON
	decodeData(t, rec, &task)
	return task
}

func TestAuth_LoginFailures(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/v1/auth/login", "", `{"email":"uma@example.com","password":"nope-nope"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, decode(t, rec).Success)

	rec = api.do(t, http.MethodPost, "/api/v1/auth/register", "", `{"name":"Dup","email":"uma@example.com","password":"password123"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/v1/auth/register", "", `{"name":"X","email":"not-an-email","password":"short"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decode(t, rec)
	assert.Equal(t, "validation failed", env.Message)
	assert.ElementsMatch(t, []string{
		"email must be a valid email address",
		"password must be at least 8 characters",
	}, env.Errors)
}

func TestTasks_RequireAuthentication(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodGet, "/api/v1/tasks/my", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/v1/tasks/my", "garbage", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/v1/tasks/my?token="+api.userToken, "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTasks_CreateAndRead(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/v1/tasks", api.userToken, `{"priority":"urgent"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decode(t, rec)
	assert.ElementsMatch(t, []string{"title is required", "priority must be one of low, medium, high"}, env.Errors)

	rec = api.do(t, http.MethodPost, "/api/v1/tasks", api.userToken, `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	task := api.createTask(t, api.userToken, `{"title":"Ship it","priority":"high","deadline":"2000-01-01"}`)
	assert.Equal(t, "todo", task.Status)
	assert.True(t, task.IsOverdue)
	assert.Equal(t, entities.NotifyOverdueUrgent, task.Notification)

	rec = api.do(t, http.MethodGet, "/api/v1/tasks/my", api.userToken, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var mine []taskJSON
	decodeData(t, rec, &mine)
	require.Len(t, mine, 1)
	assert.Equal(t, task.ID, mine[0].ID)

	rec = api.do(t, http.MethodGet, "/api/v1/tasks/"+task.ID, api.userToken, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/v1/tasks/"+task.ID, api.otherToken, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/v1/tasks/"+task.ID, api.adminToken, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/v1/tasks/8a1b7e4c-0000-4000-8000-000000000000", api.userToken, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/v1/tasks/not-an-id", api.userToken, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTasks_UpdateAndDelete(t *testing.T) {
	api := newTestAPI(t)
	task := api.createTask(t, api.userToken, `{"title":"Draft"}`)

	rec := api.do(t, http.MethodPut, "/api/v1/tasks/"+task.ID, api.userToken, `{"status":"done","version":1}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated taskJSON
	decodeData(t, rec, &updated)
	assert.Equal(t, "done", updated.Status)
	assert.Equal(t, 2, updated.Version)
	assert.Equal(t, entities.NotifyCompleted, updated.Notification)

	rec = api.do(t, http.MethodPut, "/api/v1/tasks/"+task.ID, api.userToken, `{"title":"Again","version":1}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = api.do(t, http.MethodPut, "/api/v1/tasks/"+task.ID, api.userToken, `{"status":"archived"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodDelete, "/api/v1/tasks/"+task.ID, api.otherToken, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(t, http.MethodDelete, "/api/v1/tasks/"+task.ID, api.userToken, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, api.store.TaskCount())
}

func TestTasks_TitleBoundAppliesAfterTrim(t *testing.T) {
	api := newTestAPI(t)
	title := strings.Repeat("a", entities.MaxTitleLength)

	task := api.createTask(t, api.userToken, `{"title":"  `+title+`  "}`)
	assert.Equal(t, title, task.Title)

	rec := api.do(t, http.MethodPut, "/api/v1/tasks/"+task.ID, api.userToken, `{"title":" `+title+` "}`)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = api.do(t, http.MethodPost, "/api/v1/tasks/"+task.ID+"/subtasks", api.userToken, `{"title":"  `+title+`  "}`)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = api.do(t, http.MethodPost, "/api/v1/tasks", api.userToken, `{"title":"`+title+`a"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTasks_BlankDeadlineIsIgnored(t *testing.T) {
	api := newTestAPI(t)

	task := api.createTask(t, api.userToken, `{"title":"Plan","deadline":""}`)

	rec := api.do(t, http.MethodPut, "/api/v1/tasks/"+task.ID, api.userToken, `{"deadline":"2030-05-01"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	for _, body := range []string{`{"deadline":""}`, `{"deadline":"   "}`} {
		rec = api.do(t, http.MethodPut, "/api/v1/tasks/"+task.ID, api.userToken, body)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var got struct {
			Deadline *time.Time `json:"deadline"`
		}
		decodeData(t, rec, &got)
		require.NotNil(t, got.Deadline, body)
		assert.True(t, got.Deadline.Equal(time.Date(2030, 5, 1, 0, 0, 0, 0, time.UTC)), body)
	}

	rec = api.do(t, http.MethodPut, "/api/v1/tasks/"+task.ID, api.userToken, `{"deadline":"someday"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTasks_CommentsAndSubTasks(t *testing.T) {
	api := newTestAPI(t)
	task := api.createTask(t, api.userToken, `{"title":"List"}`)

	rec := api.do(t, http.MethodPost, "/api/v1/tasks/"+task.ID+"/comments", api.userToken, `{"text":"first"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/v1/tasks/"+task.ID+"/subtasks", api.userToken, `{"title":"step"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = api.do(t, http.MethodPatch, "/api/v1/tasks/"+task.ID+"/subtasks/0", api.userToken, `{"completed":true}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(t, http.MethodPatch, "/api/v1/tasks/"+task.ID+"/subtasks/5", api.userToken, `{"completed":true}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(t, http.MethodPatch, "/api/v1/tasks/"+task.ID+"/subtasks/x", api.userToken, `{"completed":true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminRoutes(t *testing.T) {
	api := newTestAPI(t)
	for i := 0; i < 7; i++ {
		api.createTask(t, api.userToken, fmt.Sprintf(`{"title":"task %d"}`, i))
	}
	task := api.createTask(t, api.userToken, `{"title":"to hand over"}`)

	for _, path := range []string{"/api/v1/tasks", "/api/v1/tasks/stats"} {
		rec := api.do(t, http.MethodGet, path, api.userToken, "")
		assert.Equal(t, http.StatusForbidden, rec.Code, path)
	}
	rec := api.do(t, http.MethodPatch, "/api/v1/tasks/"+task.ID+"/assign", api.userToken, `{"user_id":"`+api.otherID+`"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/v1/tasks?page=2&limit=5&status=bogus", api.adminToken, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var page struct {
		Total int64      `json:"total"`
		Page  int        `json:"page"`
		Pages int        `json:"pages"`
		Count int        `json:"count"`
		Data  []taskJSON `json:"data"`
	}
	decodeData(t, rec, &page)
	assert.Equal(t, int64(8), page.Total)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 2, page.Pages)
	assert.Equal(t, 3, page.Count)

	rec = api.do(t, http.MethodGet, "/api/v1/tasks/stats", api.adminToken, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats struct {
		Total       int64            `json:"total"`
		StatusCount map[string]int64 `json:"status_count"`
	}
	decodeData(t, rec, &stats)
	assert.Equal(t, int64(8), stats.Total)
	assert.Equal(t, map[string]int64{"todo": 8, "in-progress": 0, "done": 0}, stats.StatusCount)

	api.pub.Reset()
	rec = api.do(t, http.MethodPatch, "/api/v1/tasks/"+task.ID+"/assign", api.adminToken, `{"user_id":"`+api.otherID+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var assigned taskJSON
	decodeData(t, rec, &assigned)
	assert.Equal(t, api.otherID, assigned.AssignedTo)
	require.NotNil(t, assigned.Assignee)
	assert.Equal(t, "Oli", assigned.Assignee.Name)
	require.Len(t, api.pub.Events(), 1)
	assert.Equal(t, api.otherID, api.pub.Events()[0].UserID.String())

	rec = api.do(t, http.MethodPatch, "/api/v1/tasks/"+task.ID+"/assign", api.adminToken, `{"user_id":"8a1b7e4c-0000-4000-8000-000000000000"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(t, http.MethodPatch, "/api/v1/tasks/"+task.ID+"/assign", api.adminToken, `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAssignmentFailureIsInternal(t *testing.T) {
	api := newTestAPI(t)
	task := api.createTask(t, api.userToken, `{"title":"x"}`)
	api.store.CommitErr = testutil.ErrInjected

	rec := api.do(t, http.MethodPatch, "/api/v1/tasks/"+task.ID+"/assign", api.adminToken, `{"user_id":"`+api.otherID+`"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	env := decode(t, rec)
	assert.False(t, env.Success)
	assert.Equal(t, "task assignment failed", env.Message)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{entities.NewValidationError("bad"), http.StatusBadRequest},
		{entities.ErrInvalidToken, http.StatusUnauthorized},
		{entities.ErrNotAuthorized, http.StatusForbidden},
		{entities.ErrTaskNotFound, http.StatusNotFound},
		{entities.ErrVersionConflict, http.StatusConflict},
		{fmt.Errorf("wrapped: %w", entities.ErrUserNotFound), http.StatusNotFound},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			code, body := renderError(tt.err)
			assert.Equal(t, tt.want, code)
			if code == http.StatusInternalServerError {
				assert.Equal(t, "internal server error", body.Message)
			}
		})
	}
}
