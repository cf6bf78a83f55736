package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"stride/internal/oauth/handler/mocks"
	"stride/internal/oauth/models"
	"stride/internal/oauth/verifier"
	id "stride/pkg/domain"
	dErrors "stride/pkg/domain-errors"
	"stride/pkg/testutil"
)

const testAdminToken = "admin-secret"

type HandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	handler *Handler
	router  chi.Router
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s.handler = New(s.service, logger, nil, Config{AdminToken: testAdminToken})
	s.router = chi.NewRouter()
	s.handler.Register(s.router)
}

func (s *HandlerSuite) serve(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func formRequest(method, target string, form url.Values) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

// withSession attaches a session cookie and expects it to resolve to athleteID.
func (s *HandlerSuite) withSession(req *http.Request, athleteID id.AthleteID) id.SessionID {
	sessionID := id.NewSessionID()
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: sessionID.String()})
	s.service.EXPECT().ResolveSession(gomock.Any(), sessionID).Return(&models.LoginSession{
		ID:        sessionID,
		AthleteID: athleteID,
		ExpiresAt: time.Now().Add(time.Hour),
	}, nil)
	return sessionID
}

func (s *HandlerSuite) TestLogin() {
	s.Run("success sets an http-only session cookie", func() {
		sessionID := id.NewSessionID()
		athleteID := id.NewAthleteID()
		expires := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
		s.service.EXPECT().Login(gomock.Any(), "alice", "pw").Return(&models.LoginSession{
			ID: sessionID, AthleteID: athleteID, ExpiresAt: expires,
		}, nil)

		rr := s.serve(formRequest(http.MethodPost, "/login", url.Values{"username": {"alice"}, "password": {"pw"}}))

		s.Equal(http.StatusOK, rr.Code)
		cookies := rr.Result().Cookies()
		s.Require().Len(cookies, 1)
		s.Equal(SessionCookieName, cookies[0].Name)
		s.Equal(sessionID.String(), cookies[0].Value)
		s.True(cookies[0].HttpOnly)
		s.Equal(http.SameSiteLaxMode, cookies[0].SameSite)
		s.Equal(athleteID.String(), decodeBody(s.T(), rr)["athlete_id"])
	})

	s.Run("relative return_to redirects back", func() {
		s.service.EXPECT().Login(gomock.Any(), "alice", "pw").Return(&models.LoginSession{
			ID: id.NewSessionID(), AthleteID: id.NewAthleteID(), ExpiresAt: time.Now().Add(time.Hour),
		}, nil)

		target := "/oauth/authorize?response_type=code&client_id=C1"
		rr := s.serve(formRequest(http.MethodPost, "/login", url.Values{
			"username": {"alice"}, "password": {"pw"}, "return_to": {target},
		}))

		s.Equal(http.StatusFound, rr.Code)
		s.Equal(target, rr.Header().Get("Location"))
	})

	s.Run("bad credentials are unauthorized", func() {
		s.service.EXPECT().Login(gomock.Any(), "alice", "wrong").
			Return(nil, dErrors.New(dErrors.CodeInvalidGrant, "invalid resource owner credentials"))

		rr := s.serve(formRequest(http.MethodPost, "/login", url.Values{"username": {"alice"}, "password": {"wrong"}}))

		s.Equal(http.StatusUnauthorized, rr.Code)
		s.JSONEq(`{"error":"invalid_grant"}`, rr.Body.String())
		s.Empty(rr.Result().Cookies())
	})

	s.Run("JSON body is accepted", func() {
		s.service.EXPECT().Login(gomock.Any(), "bob", "pw").Return(&models.LoginSession{
			ID: id.NewSessionID(), AthleteID: id.NewAthleteID(), ExpiresAt: time.Now().Add(time.Hour),
		}, nil)

		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"username":"bob","password":"pw"}`))
		req.Header.Set("Content-Type", "application/json")
		rr := s.serve(req)

		s.Equal(http.StatusOK, rr.Code)
	})
}

func (s *HandlerSuite) TestLoginForm() {
	s.Run("describes the login form", func() {
		rr := s.serve(httptest.NewRequest(http.MethodGet, "/login", nil))

		s.Require().Equal(http.StatusOK, rr.Code)
		s.Equal("no-store", rr.Header().Get("Cache-Control"))
		body := decodeBody(s.T(), rr)
		s.ElementsMatch([]any{"username", "password", "return_to"}, body["fields"])
		s.NotContains(body, "return_to")
	})

	s.Run("off-site return_to is dropped", func() {
		rr := s.serve(httptest.NewRequest(http.MethodGet, "/login?return_to="+url.QueryEscape("//evil.example/x"), nil))

		s.Require().Equal(http.StatusOK, rr.Code)
		s.NotContains(decodeBody(s.T(), rr), "return_to")
	})
}

func (s *HandlerSuite) TestLogout() {
	sessionID := id.NewSessionID()
	s.service.EXPECT().Logout(gomock.Any(), sessionID).Return(nil)

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: sessionID.String()})
	rr := s.serve(req)

	s.Equal(http.StatusNoContent, rr.Code)
	cookies := rr.Result().Cookies()
	s.Require().Len(cookies, 1)
	s.Equal(-1, cookies[0].MaxAge)
}

func (s *HandlerSuite) TestAuthorize() {
	authorizeURL := "/oauth/authorize?response_type=code&client_id=C1&redirect_uri=" +
		url.QueryEscape("https://app.example/cb") + "&state=xyz"

	s.Run("without a session redirects to login", func() {
		rr := s.serve(httptest.NewRequest(http.MethodGet, authorizeURL, nil))

		s.Equal(http.StatusFound, rr.Code)
		location, err := url.Parse(rr.Header().Get("Location"))
		s.Require().NoError(err)
		s.Equal("/login", location.Path)
		s.Equal(authorizeURL, location.Query().Get("return_to"))

		form := s.serve(httptest.NewRequest(http.MethodGet, location.String(), nil))
		s.Require().Equal(http.StatusOK, form.Code)
		body := decodeBody(s.T(), form)
		s.Equal("/login", body["action"])
		s.Equal(http.MethodPost, body["method"])
		s.Equal(authorizeURL, body["return_to"])
	})

	s.Run("expired session redirects to login", func() {
		sessionID := id.NewSessionID()
		req := httptest.NewRequest(http.MethodGet, authorizeURL, nil)
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: sessionID.String()})
		s.service.EXPECT().ResolveSession(gomock.Any(), sessionID).
			Return(nil, dErrors.New(dErrors.CodeLoginRequired, "login required"))

		rr := s.serve(req)

		s.Equal(http.StatusFound, rr.Code)
	})

	s.Run("opens a transaction for the logged in athlete", func() {
		athleteID := id.NewAthleteID()
		clientRecordID := id.NewClientID()
		txnID := id.NewTransactionID()
		req := httptest.NewRequest(http.MethodGet, authorizeURL, nil)
		sessionID := s.withSession(req, athleteID)

		s.service.EXPECT().Authorize(gomock.Any(), models.AuthorizeRequest{
			ClientID:    "C1",
			RedirectURI: "https://app.example/cb",
			State:       "xyz",
			AthleteID:   athleteID,
			SessionID:   sessionID,
		}).Return(&models.AuthorizeResult{
			TransactionID: txnID,
			Athlete:       &models.Athlete{ID: athleteID, UserName: "alice"},
			Client:        &models.Client{ID: clientRecordID, ClientID: "C1"},
		}, nil)

		rr := s.serve(req)

		s.Equal(http.StatusOK, rr.Code)
		body := decodeBody(s.T(), rr)
		s.Equal(txnID.String(), body["transaction_id"])
		s.Equal("alice", body["athlete"].(map[string]any)["user_name"])
		s.Equal("C1", body["client"].(map[string]any)["client_id"])
	})

	s.Run("athlete deleted since login is sent back to login", func() {
		athleteID := id.NewAthleteID()
		sessionID := id.NewSessionID()
		s.service.EXPECT().Authorize(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeLoginRequired, "login required"))

		req := testutil.WithLogin(httptest.NewRequest(http.MethodGet, authorizeURL, nil), athleteID, sessionID)
		rr := httptest.NewRecorder()
		s.handler.handleAuthorize(rr, req)

		s.Equal(http.StatusFound, rr.Code)
		s.True(strings.HasPrefix(rr.Header().Get("Location"), "/login?return_to="))
	})

	s.Run("unsupported response_type is rejected", func() {
		req := httptest.NewRequest(http.MethodGet, "/oauth/authorize?response_type=token&client_id=C1", nil)
		s.withSession(req, id.NewAthleteID())

		rr := s.serve(req)

		s.Equal(http.StatusBadRequest, rr.Code)
		s.Equal("invalid_request", decodeBody(s.T(), rr)["error"])
	})

	s.Run("unknown client is rejected", func() {
		req := httptest.NewRequest(http.MethodGet, authorizeURL, nil)
		s.withSession(req, id.NewAthleteID())
		s.service.EXPECT().Authorize(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeInvalidClient, "client authentication failed"))

		rr := s.serve(req)

		s.Equal(http.StatusUnauthorized, rr.Code)
		s.Equal("invalid_client", decodeBody(s.T(), rr)["error"])
	})
}

func (s *HandlerSuite) TestDecision() {
	s.Run("allow redirects to the client", func() {
		athleteID := id.NewAthleteID()
		txnID := id.NewTransactionID()
		req := formRequest(http.MethodPost, "/oauth/authorize/decision", url.Values{
			"transaction_id": {txnID.String()}, "decision": {"allow"},
		})
		sessionID := s.withSession(req, athleteID)
		s.service.EXPECT().Decide(gomock.Any(), models.DecisionRequest{
			TransactionID: txnID,
			AthleteID:     athleteID,
			SessionID:     sessionID,
			Approved:      true,
		}).Return(&models.DecisionResult{RedirectURI: "https://app.example/cb?code=abc&state=xyz", Approved: true}, nil)

		rr := s.serve(req)

		s.Equal(http.StatusFound, rr.Code)
		s.Equal("https://app.example/cb?code=abc&state=xyz", rr.Header().Get("Location"))
	})

	s.Run("cancel denies", func() {
		txnID := id.NewTransactionID()
		req := formRequest(http.MethodPost, "/oauth/authorize/decision", url.Values{
			"transaction_id": {txnID.String()}, "cancel": {"Deny"},
		})
		s.withSession(req, id.NewAthleteID())
		s.service.EXPECT().Decide(gomock.Any(), gomock.Cond(func(req models.DecisionRequest) bool {
			return !req.Approved && req.TransactionID == txnID
		})).Return(&models.DecisionResult{RedirectURI: "https://app.example/cb?error=access_denied"}, nil)

		rr := s.serve(req)

		s.Equal(http.StatusFound, rr.Code)
		s.Contains(rr.Header().Get("Location"), "error=access_denied")
	})

	s.Run("missing transaction is invalid_request", func() {
		req := formRequest(http.MethodPost, "/oauth/authorize/decision", url.Values{"decision": {"allow"}})
		s.withSession(req, id.NewAthleteID())

		rr := s.serve(req)

		s.Equal(http.StatusBadRequest, rr.Code)
		s.Equal("invalid_request", decodeBody(s.T(), rr)["error"])
	})
}

func (s *HandlerSuite) TestToken() {
	s.Run("basic credentials are decoded and passed through", func() {
		s.service.EXPECT().Token(gomock.Any(), models.TokenRequest{
			GrantType:   "authorization_code",
			Code:        "abc",
			RedirectURI: "https://app.example/cb",
			Basic:       &models.ClientCredentials{ClientID: "C1", ClientSecret: "s3cr:t"},
		}).Return(&models.TokenResult{AccessToken: "tok", TokenType: "bearer"}, nil)

		req := formRequest(http.MethodPost, "/oauth/token", url.Values{
			"grant_type": {"authorization_code"}, "code": {"abc"}, "redirect_uri": {"https://app.example/cb"},
		})
		req.SetBasicAuth("C1", url.QueryEscape("s3cr:t"))
		rr := s.serve(req)

		s.Equal(http.StatusOK, rr.Code)
		s.Equal("no-store", rr.Header().Get("Cache-Control"))
		s.JSONEq(`{"access_token":"tok","token_type":"bearer"}`, rr.Body.String())
	})

	s.Run("body credentials are passed through", func() {
		s.service.EXPECT().Token(gomock.Any(), gomock.Cond(func(req models.TokenRequest) bool {
			return req.Basic == nil && req.Body != nil && req.Body.ClientID == "C1" && req.Body.ClientSecret == "sec"
		})).Return(&models.TokenResult{AccessToken: "tok", TokenType: "bearer"}, nil)

		rr := s.serve(formRequest(http.MethodPost, "/oauth/token", url.Values{
			"grant_type": {"client_credentials"}, "client_id": {"C1"}, "client_secret": {"sec"},
		}))

		s.Equal(http.StatusOK, rr.Code)
	})

	s.Run("failed basic authentication challenges", func() {
		s.service.EXPECT().Token(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeInvalidClient, "client authentication failed"))

		req := formRequest(http.MethodPost, "/oauth/token", url.Values{"grant_type": {"client_credentials"}})
		req.SetBasicAuth("C1", "wrong")
		rr := s.serve(req)

		s.Equal(http.StatusUnauthorized, rr.Code)
		s.Equal(`Basic realm="stride"`, rr.Header().Get("WWW-Authenticate"))
		s.JSONEq(`{"error":"invalid_client"}`, rr.Body.String())
	})

	s.Run("malformed basic header never reaches the service", func() {
		req := formRequest(http.MethodPost, "/oauth/token", url.Values{"grant_type": {"client_credentials"}})
		req.Header.Set("Authorization", "Basic !!!not-base64")
		rr := s.serve(req)

		s.Equal(http.StatusUnauthorized, rr.Code)
		s.Equal("invalid_client", decodeBody(s.T(), rr)["error"])
	})

	s.Run("invalid grant is a bare 400", func() {
		s.service.EXPECT().Token(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeInvalidGrant, "invalid authorization code"))

		rr := s.serve(formRequest(http.MethodPost, "/oauth/token", url.Values{
			"grant_type": {"authorization_code"}, "client_id": {"C1"}, "client_secret": {"s"},
		}))

		s.Equal(http.StatusBadRequest, rr.Code)
		s.JSONEq(`{"error":"invalid_grant"}`, rr.Body.String())
	})

	s.Run("store failure is a server_error", func() {
		s.service.EXPECT().Token(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.Wrap(errors.New("connection refused"), dErrors.CodeInternal, "failed to store token"))

		rr := s.serve(formRequest(http.MethodPost, "/oauth/token", url.Values{"grant_type": {"client_credentials"}}))

		s.Equal(http.StatusInternalServerError, rr.Code)
		s.JSONEq(`{"error":"server_error"}`, rr.Body.String())
	})
}

func (s *HandlerSuite) TestMe() {
	s.Run("athlete token", func() {
		athleteID := id.NewAthleteID()
		s.service.EXPECT().AuthenticateBearer(gomock.Any(), "tok").Return(&verifier.Principal{
			Client:  &models.Client{ClientID: "C1"},
			Athlete: &models.Athlete{ID: athleteID, UserName: "alice"},
		}, nil)

		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req.Header.Set("Authorization", "Bearer tok")
		rr := s.serve(req)

		s.Equal(http.StatusOK, rr.Code)
		body := decodeBody(s.T(), rr)
		s.Equal("C1", body["client_id"])
		s.Equal("alice", body["athlete"].(map[string]any)["user_name"])
	})

	s.Run("client token has no athlete", func() {
		s.service.EXPECT().AuthenticateBearer(gomock.Any(), "tok").Return(&verifier.Principal{
			Client: &models.Client{ClientID: "C1"},
		}, nil)

		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req.Header.Set("Authorization", "Bearer tok")
		rr := s.serve(req)

		s.Equal(http.StatusOK, rr.Code)
		s.NotContains(decodeBody(s.T(), rr), "athlete")
	})

	s.Run("rejected token", func() {
		s.service.EXPECT().AuthenticateBearer(gomock.Any(), "nope").
			Return(nil, dErrors.New(dErrors.CodeUnauthorized, "invalid access token"))

		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req.Header.Set("Authorization", "Bearer nope")
		rr := s.serve(req)

		s.Equal(http.StatusUnauthorized, rr.Code)
	})
}

func (s *HandlerSuite) TestClients() {
	s.Run("register requires the admin token", func() {
		req := httptest.NewRequest(http.MethodPost, "/api/1/clients/", strings.NewReader(`{"client_id":"C1"}`))
		rr := s.serve(req)

		s.Equal(http.StatusUnauthorized, rr.Code)
	})

	s.Run("register returns the secret once", func() {
		clientRecordID := id.NewClientID()
		s.service.EXPECT().RegisterClient(gomock.Any(), &models.RegisterClientRequest{
			ClientID:     "C1",
			RedirectURIs: []string{"https://app.example/cb"},
		}).Return(&models.RegisterClientResult{
			Client: &models.Client{ID: clientRecordID, ClientID: "C1", RedirectURIs: []string{"https://app.example/cb"}},
			Secret: "generated",
		}, nil)

		req := httptest.NewRequest(http.MethodPost, "/api/1/clients/",
			strings.NewReader(`{"client_id":" C1 ","redirect_uris":["https://app.example/cb"]}`))
		req.Header.Set("X-Admin-Token", testAdminToken)
		rr := s.serve(req)

		s.Equal(http.StatusCreated, rr.Code)
		body := decodeBody(s.T(), rr)
		s.Equal("C1", body["client_id"])
		s.Equal("generated", body["client_secret"])
		s.NotContains(body, "SecretHash")
	})

	s.Run("register validates the body", func() {
		req := httptest.NewRequest(http.MethodPost, "/api/1/clients/", strings.NewReader(`{"redirect_uris":["not a url"]}`))
		req.Header.Set("X-Admin-Token", testAdminToken)
		rr := s.serve(req)

		s.Equal(http.StatusBadRequest, rr.Code)
	})

	s.Run("get unknown client", func() {
		clientRecordID := id.NewClientID()
		s.service.EXPECT().GetClient(gomock.Any(), clientRecordID).
			Return(nil, dErrors.New(dErrors.CodeNotFound, "client not found"))

		req := httptest.NewRequest(http.MethodGet, "/api/1/clients/"+clientRecordID.String(), nil)
		req.Header.Set("X-Admin-Token", testAdminToken)
		rr := s.serve(req)

		s.Equal(http.StatusNotFound, rr.Code)
	})

	s.Run("delete", func() {
		clientRecordID := id.NewClientID()
		s.service.EXPECT().DeleteClient(gomock.Any(), clientRecordID).Return(nil)

		req := httptest.NewRequest(http.MethodDelete, "/api/1/clients/"+clientRecordID.String(), nil)
		req.Header.Set("X-Admin-Token", testAdminToken)
		rr := s.serve(req)

		s.Equal(http.StatusNoContent, rr.Code)
	})

	s.Run("malformed id", func() {
		req := httptest.NewRequest(http.MethodGet, "/api/1/clients/not-a-uuid", nil)
		req.Header.Set("X-Admin-Token", testAdminToken)
		rr := s.serve(req)

		s.Equal(http.StatusBadRequest, rr.Code)
	})
}

func TestSafeReturnTo(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		ok   bool
	}{
		{"relative path", "/oauth/authorize?client_id=C1", true},
		{"empty", "", false},
		{"absolute url", "https://evil.example/", false},
		{"protocol relative", "//evil.example/", false},
		{"backslash trick", `/\evil.example`, false},
		{"no leading slash", "oauth/authorize", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := safeReturnTo(tt.raw)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestDecisionFrom(t *testing.T) {
	txnID := id.NewTransactionID()

	_, approved, err := decisionFrom(url.Values{"transaction_id": {txnID.String()}, "decision": {"allow"}})
	require.NoError(t, err)
	assert.True(t, approved)

	_, approved, err = decisionFrom(url.Values{"transaction_id": {txnID.String()}, "decision": {"allow"}, "cancel": {"1"}})
	require.NoError(t, err)
	assert.False(t, approved)

	_, approved, err = decisionFrom(url.Values{"transaction_id": {txnID.String()}})
	require.NoError(t, err, "a form without decision or cancel is a denial")
	assert.False(t, approved)

	_, _, err = decisionFrom(url.Values{"transaction_id": {txnID.String()}, "decision": {"maybe"}})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidRequest))
}
