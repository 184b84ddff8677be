package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/brettbedarf/filetree"
	"github.com/brettbedarf/filetree/config"
	"github.com/brettbedarf/filetree/internal/mocks"
	"github.com/brettbedarf/filetree/internal/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testToken = "secret-token"

var testUser = &filetree.User{
	ID:        "0b7e4f0e-3c0a-5d2e-9b1c-1f2e3d4c5b6a",
	Name:      "Ada",
	Email:     "ada@example.com",
	Role:      filetree.RoleAdmin,
	CreatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
}

type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  *errorBody      `json:"error"`
}

type testServer struct {
	ops     *mocks.MockTreeOperator
	auth    *mocks.MockAuthenticator
	handler http.Handler
}

func newTestServer(t *testing.T, override *config.ConfigOverride) *testServer {
	t.Helper()
	ops := &mocks.MockTreeOperator{}
	auth := &mocks.MockAuthenticator{}
	auth.On("Authenticate", mock.Anything, testToken).Return(testUser, nil).Maybe()
	auth.On("Authenticate", mock.Anything, mock.Anything).
		Return(nil, filetree.NewError(filetree.KindUnauthorized, "Authenticate", "",
			"You must be logged in to access this resource", nil)).Maybe()
	t.Cleanup(func() {
		ops.AssertExpectations(t)
	})
	cfg := config.NewConfig(override)
	return &testServer{ops: ops, auth: auth, handler: NewRouter(cfg, ops, auth)}
}

func (ts *testServer) do(t *testing.T, method, path, body string, token string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func messageOf(t *testing.T, env envelope) string {
	t.Helper()
	var data messageData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	return data.Message
}

func TestMain(m *testing.M) {
	util.InitializeLogger(util.ErrorLevel)
	m.Run()
}

func TestRouter_CreateFolder(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.ops.On("CreateFolder", mock.Anything, &filetree.CreateFolderRequest{Name: "docs"}).Return(nil).Once()

	rec, env := ts.do(t, http.MethodPost, "/api/createFolder", `{"name":"docs"}`, testToken)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", env.Status)
	assert.Equal(t, "Folder created successfully", messageOf(t, env))
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestRouter_CreateFile(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.ops.On("CreateFile", mock.Anything, mock.MatchedBy(func(req *filetree.CreateFileRequest) bool {
		return req.Name == "readme.md" && req.FolderPath == "docs" &&
			string(req.Data) == "# Hi" && req.Overwrite == nil
	})).Return(nil).Once()

	rec, env := ts.do(t, http.MethodPost, "/api/createFile",
		`{"name":"readme.md","folderPath":"docs","data":"# Hi"}`, testToken)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "File created successfully", messageOf(t, env))
}

func TestRouter_Deletes(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.ops.On("DeleteFile", mock.Anything, &filetree.DeleteFileRequest{FilePath: "docs/readme.md"}).Return(nil).Once()
	ts.ops.On("DeleteFolder", mock.Anything, &filetree.DeleteFolderRequest{FolderPath: "docs"}).Return(nil).Once()

	rec, env := ts.do(t, http.MethodPost, "/api/deleteFile", `{"filePath":"docs/readme.md"}`, testToken)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "File deleted successfully", messageOf(t, env))

	rec, env = ts.do(t, http.MethodPost, "/api/deleteFolder", `{"folderPath":"docs"}`, testToken)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Folder deleted successfully", messageOf(t, env))
}

func TestRouter_DeleteFolderRootNeverReachesTree(t *testing.T) {
	ts := newTestServer(t, nil)

	for _, p := range []string{"", "/", "a/.."} {
		rec, env := ts.do(t, http.MethodPost, "/api/deleteFolder", `{"folderPath":"`+p+`"}`, testToken)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, CodeBadRequest, env.Error.Code)
		assert.Equal(t, "Cannot delete root folder", env.Error.Message)
	}
	ts.ops.AssertNotCalled(t, "DeleteFolder", mock.Anything, mock.Anything)
}

func TestRouter_ErrorMapping(t *testing.T) {
	tests := []struct {
		kind   filetree.Kind
		status int
		code   string
		msg    string
	}{
		{filetree.KindConflict, http.StatusConflict, CodeConflict, "Folder already exists"},
		{filetree.KindNotFound, http.StatusNotFound, CodeNotFound, "Folder does not exist"},
		{filetree.KindInvalidPath, http.StatusBadRequest, CodeBadRequest, "Folder path is invalid"},
		{filetree.KindInternal, http.StatusInternalServerError, CodeInternal, "Folder create failed"},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			ts := newTestServer(t, nil)
			ts.ops.On("CreateFolder", mock.Anything, mock.Anything).
				Return(filetree.NewError(tt.kind, "CreateFolder", "x", tt.msg, nil)).Once()

			rec, env := ts.do(t, http.MethodPost, "/api/createFolder", `{"name":"x"}`, testToken)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "error", env.Status)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
			assert.Equal(t, tt.msg, env.Error.Message)
		})
	}

	t.Run("foreign error is internal", func(t *testing.T) {
		ts := newTestServer(t, nil)
		ts.ops.On("DeleteFile", mock.Anything, mock.Anything).Return(errors.New("disk on fire")).Once()

		rec, env := ts.do(t, http.MethodPost, "/api/deleteFile", `{"filePath":"a"}`, testToken)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "disk on fire", env.Error.Message)
	})
}

func TestRouter_Validation(t *testing.T) {
	ts := newTestServer(t, nil)

	rec, env := ts.do(t, http.MethodPost, "/api/createFolder", `{"name":"a","bogus":true}`, testToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, CodeBadRequest, env.Error.Code)

	rec, env = ts.do(t, http.MethodPost, "/api/createFile", `{"name":"a"}`, testToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "File data is required", env.Error.Message)

	rec, env = ts.do(t, http.MethodPost, "/api/deleteFile", `{"filePath":"b\u0000c"}`, testToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "filePath must not contain NUL bytes", env.Error.Message)
}

func TestRouter_BodyLimit(t *testing.T) {
	ts := newTestServer(t, &config.ConfigOverride{MaxBodyBytes: util.Pointer(int64(32))})

	body := `{"name":"big","data":"` + strings.Repeat("x", 64) + `"}`
	rec, env := ts.do(t, http.MethodPost, "/api/createFile", body, testToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Request body exceeds 32 bytes", env.Error.Message)
}

func TestRouter_Auth(t *testing.T) {
	ts := newTestServer(t, nil)

	t.Run("Missing token", func(t *testing.T) {
		rec, env := ts.do(t, http.MethodPost, "/api/createFolder", `{"name":"a"}`, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, CodeUnauthorized, env.Error.Code)
		assert.Equal(t, "You must be logged in to access this resource", env.Error.Message)
	})

	t.Run("Unknown token", func(t *testing.T) {
		rec, _ := ts.do(t, http.MethodGet, "/api/getCurrentUser", "", "nope")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("Wrong scheme", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/getCurrentUser", nil)
		req.Header.Set("Authorization", "Basic "+testToken)
		rec := httptest.NewRecorder()
		ts.handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("Store failure is internal", func(t *testing.T) {
		ops := &mocks.MockTreeOperator{}
		auth := &mocks.MockAuthenticator{}
		auth.On("Authenticate", mock.Anything, "t").Return(nil, errors.New("db closed")).Once()
		h := NewRouter(config.NewConfig(nil), ops, auth)

		req := httptest.NewRequest(http.MethodGet, "/api/getCurrentUser", nil)
		req.Header.Set("Authorization", "Bearer t")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		auth.AssertExpectations(t)
	})
}

func TestRouter_GetCurrentUser(t *testing.T) {
	ts := newTestServer(t, nil)

	rec, env := ts.do(t, http.MethodGet, "/api/getCurrentUser", "", testToken)
	require.Equal(t, http.StatusOK, rec.Code)
	var data userData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.NotNil(t, data.User)
	assert.Equal(t, testUser.ID, data.User.ID)
	assert.Equal(t, testUser.Email, data.User.Email)
	assert.Equal(t, filetree.RoleAdmin, data.User.Role)
	assert.True(t, testUser.CreatedAt.Equal(data.User.CreatedAt))
}

func TestRouter_Misc(t *testing.T) {
	ts := newTestServer(t, nil)

	t.Run("Health needs no token", func(t *testing.T) {
		rec, env := ts.do(t, http.MethodGet, "/health", "", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ok", env.Status)
	})

	t.Run("Request id is echoed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(requestIDHeader, "abc-123")
		rec := httptest.NewRecorder()
		ts.handler.ServeHTTP(rec, req)
		assert.Equal(t, "abc-123", rec.Header().Get(requestIDHeader))
	})

	t.Run("Unknown route", func(t *testing.T) {
		rec, env := ts.do(t, http.MethodGet, "/nope", "", testToken)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, CodeNotFound, env.Error.Code)
	})

	t.Run("Wrong method", func(t *testing.T) {
		rec, _ := ts.do(t, http.MethodGet, "/api/createFolder", "", testToken)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestServer_ServeAsyncShutdown(t *testing.T) {
	cfg := config.NewConfig(&config.ConfigOverride{ListenAddr: util.Pointer("127.0.0.1:0")})
	srv := New(cfg, &mocks.MockTreeOperator{}, &mocks.MockAuthenticator{})

	addr, done, err := srv.ServeAsync()
	require.NoError(t, err)

	resp, err := http.Get("http://" + addr.String() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, srv.Shutdown(t.Context()))
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestRouter_RateLimit(t *testing.T) {
	ts := newTestServer(t, &config.ConfigOverride{
		RateLimit: util.Pointer(0.001),
		RateBurst: util.Pointer(2),
	})

	for range 2 {
		rec, _ := ts.do(t, http.MethodGet, "/api/getCurrentUser", "", testToken)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec, env := ts.do(t, http.MethodGet, "/api/getCurrentUser", "", testToken)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, CodeTooManyRequests, env.Error.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Health is outside the limited subtree
	rec, _ = ts.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUserLimiter_PerUser(t *testing.T) {
	l := newUserLimiter(0.001, 1)
	assert.True(t, l.get("a").Allow())
	assert.False(t, l.get("a").Allow())
	assert.True(t, l.get("b").Allow())
	assert.Same(t, l.get("a"), l.get("a"))
}
