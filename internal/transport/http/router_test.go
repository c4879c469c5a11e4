package httptransport

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tempinbox/backend/internal/auth"
	"tempinbox/backend/internal/auth/jwt"
	"tempinbox/backend/internal/config"
	"tempinbox/backend/internal/domain"
	"tempinbox/backend/internal/middleware"
	"tempinbox/backend/internal/service"
	"tempinbox/backend/internal/storage/memory"
)

const (
	testJWTSecret     = "router-test-secret-0123456789abcdef"
	testWebhookSecret = "inbound-secret"
	sessionA          = "session-aaaaaaaaaaaa"
	sessionB          = "session-bbbbbbbbbbbb"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testServer struct {
	router *gin.Engine
	tokens *jwt.Manager
	clock  *testClock
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Server:  config.ServerConfig{MaxBodyBytes: 1 << 20},
		Mailbox: config.MailboxConfig{SharedDomains: []string{"tempinbox.dev"}, GenerateAttempts: 5, GeneratedLength: 10},
		Plans:   domain.DefaultPlans(),
		CORS:    config.CORSConfig{AllowedOrigins: []string{"*"}},
	}

	store := memory.NewStore()
	clock := &testClock{now: time.Now().UTC()}

	plans := service.NewPlanService(store, cfg.Plans, nil)
	domains := service.NewDomainService(store, cfg.Mailbox.SharedDomains, nil, 0, nil)
	t.Cleanup(domains.Close)

	emails := service.NewEmailService(store, domains, cfg.Mailbox, nil)
	emails.SetClock(clock.Now)
	messages := service.NewMessageService(store, emails, plans, nil)
	messages.SetClock(clock.Now)

	hash, err := auth.HashSecret(testWebhookSecret)
	require.NoError(t, err)
	secret, err := auth.NewSecretVerifier(hash)
	require.NoError(t, err)

	tokens := jwt.NewManager(testJWTSecret, "tempinbox", time.Hour)
	router := NewRouter(RouterDependencies{
		Config:         cfg,
		EmailService:   emails,
		MessageService: messages,
		QuotaTracker:   service.NewQuotaTracker(emails, nil),
		PlanService:    plans,
		DomainService:  domains,
		TokenVerifier:  tokens,
		WebhookSecret:  secret,
	})

	return &testServer{router: router, tokens: tokens, clock: clock}
}

type requestOption func(*http.Request)

func withSession(token string) requestOption {
	return func(r *http.Request) { r.Header.Set(middleware.HeaderSessionToken, token) }
}

func withBearer(token string) requestOption {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func withWebhookSecret(secret string) requestOption {
	return func(r *http.Request) { r.Header.Set(middleware.HeaderWebhookSecret, secret) }
}

func (s *testServer) do(method, path string, body interface{}, opts ...requestOption) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for _, opt := range opts {
		opt(req)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) userToken(t *testing.T, userID string, plan domain.PlanName) string {
	t.Helper()
	token, _, err := s.tokens.Issue(userID, string(plan))
	require.NoError(t, err)
	return token
}

func decode(t *testing.T, w *httptest.ResponseRecorder, data interface{}) Response {
	t.Helper()
	resp := Response{Data: data}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func (s *testServer) createEmail(t *testing.T, body interface{}, opts ...requestOption) EmailResponse {
	t.Helper()
	w := s.do(http.MethodPost, "/v1/emails", body, opts...)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var email EmailResponse
	decode(t, w, &email)
	return email
}

func inbound(to, messageID string) InboundMailRequest {
	return InboundMailRequest{
		MessageID: messageID,
		To:        to,
		From:      "sender@example.com",
		Subject:   "验证码",
		TextBody:  "123456",
	}
}

func TestCreateEmail(t *testing.T) {
	t.Run("匿名会话创建随机邮箱", func(t *testing.T) {
		s := setupTestServer(t)
		w := s.do(http.MethodPost, "/v1/emails", nil, withSession(sessionA))
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		var email EmailResponse
		resp := decode(t, w, &email)
		assert.Equal(t, CodeCreated, resp.Code)
		assert.True(t, strings.HasSuffix(email.Address, "@tempinbox.dev"))
		assert.Equal(t, domain.PlanAnonymous, email.Plan)
		assert.Equal(t, 600*time.Second, email.ExpiresAt.Sub(email.CreatedAt))
	})

	t.Run("缺少身份返回401", func(t *testing.T) {
		s := setupTestServer(t)
		w := s.do(http.MethodPost, "/v1/emails", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("超出配额返回429与重置时间", func(t *testing.T) {
		s := setupTestServer(t)
		first := s.createEmail(t, nil, withSession(sessionA))
		s.clock.Advance(time.Second)
		s.createEmail(t, nil, withSession(sessionA))

		w := s.do(http.MethodPost, "/v1/emails", nil, withSession(sessionA))
		require.Equal(t, http.StatusTooManyRequests, w.Code)

		var data struct {
			Limit     int        `json:"limit"`
			ResetTime *time.Time `json:"resetTime"`
		}
		decode(t, w, &data)
		assert.Equal(t, 2, data.Limit)
		require.NotNil(t, data.ResetTime)
		assert.True(t, data.ResetTime.Equal(first.ExpiresAt))
		assert.NotEmpty(t, w.Header().Get("Retry-After"))
	})

	t.Run("最早的邮箱过期后释放名额", func(t *testing.T) {
		s := setupTestServer(t)
		s.createEmail(t, nil, withSession(sessionA))
		s.createEmail(t, nil, withSession(sessionA))

		s.clock.Advance(600 * time.Second)
		w := s.do(http.MethodPost, "/v1/emails", nil, withSession(sessionA))
		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("指定前缀被他人占用返回409", func(t *testing.T) {
		s := setupTestServer(t)
		s.createEmail(t, CreateEmailRequest{LocalPart: "alice"}, withSession(sessionA))

		w := s.do(http.MethodPost, "/v1/emails", CreateEmailRequest{LocalPart: "ALICE"}, withSession(sessionB))
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("非法前缀与未知域名返回400", func(t *testing.T) {
		s := setupTestServer(t)
		w := s.do(http.MethodPost, "/v1/emails", CreateEmailRequest{LocalPart: "a!"}, withSession(sessionA))
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = s.do(http.MethodPost, "/v1/emails", CreateEmailRequest{Domain: "gmail.com"}, withSession(sessionA))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("会话令牌格式无效返回400", func(t *testing.T) {
		s := setupTestServer(t)
		w := s.do(http.MethodPost, "/v1/emails", nil, withSession("short"))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("登录用户使用令牌中的套餐", func(t *testing.T) {
		s := setupTestServer(t)
		token := s.userToken(t, "u-premium", domain.PlanPremium)
		email := s.createEmail(t, nil, withBearer(token))
		assert.Equal(t, domain.PlanPremium, email.Plan)
		assert.Equal(t, 86400*time.Second, email.ExpiresAt.Sub(email.CreatedAt))
	})

	t.Run("无效身份令牌返回401", func(t *testing.T) {
		s := setupTestServer(t)
		w := s.do(http.MethodPost, "/v1/emails", nil, withBearer("not-a-token"))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestEmailAccess(t *testing.T) {
	t.Run("列表只包含自己的活跃邮箱", func(t *testing.T) {
		s := setupTestServer(t)
		mine := s.createEmail(t, nil, withSession(sessionA))
		s.createEmail(t, nil, withSession(sessionB))

		w := s.do(http.MethodGet, "/v1/emails", nil, withSession(sessionA))
		require.Equal(t, http.StatusOK, w.Code)
		var items []EmailResponse
		decode(t, w, &items)
		require.Len(t, items, 1)
		assert.Equal(t, mine.Address, items[0].Address)

		s.clock.Advance(600 * time.Second)
		w = s.do(http.MethodGet, "/v1/emails", nil, withSession(sessionA))
		items = nil
		decode(t, w, &items)
		assert.Empty(t, items)
	})

	t.Run("他人访问返回403，过期返回410", func(t *testing.T) {
		s := setupTestServer(t)
		email := s.createEmail(t, nil, withSession(sessionA))

		w := s.do(http.MethodGet, "/v1/emails/"+email.Address, nil, withSession(sessionB))
		assert.Equal(t, http.StatusForbidden, w.Code)

		w = s.do(http.MethodGet, "/v1/emails/"+email.Address, nil, withSession(sessionA))
		assert.Equal(t, http.StatusOK, w.Code)

		s.clock.Advance(600 * time.Second)
		w = s.do(http.MethodGet, "/v1/emails/"+email.Address, nil, withSession(sessionA))
		assert.Equal(t, http.StatusGone, w.Code)

		w = s.do(http.MethodGet, "/v1/inbox/"+email.Address, nil, withSession(sessionA))
		assert.Equal(t, http.StatusGone, w.Code)
	})

	t.Run("删除邮箱", func(t *testing.T) {
		s := setupTestServer(t)
		email := s.createEmail(t, nil, withSession(sessionA))

		w := s.do(http.MethodDelete, "/v1/emails/"+email.Address, nil, withSession(sessionB))
		assert.Equal(t, http.StatusForbidden, w.Code)

		w = s.do(http.MethodDelete, "/v1/emails/"+email.Address, nil, withSession(sessionA))
		assert.Equal(t, http.StatusNoContent, w.Code)

		w = s.do(http.MethodDelete, "/v1/emails/"+email.Address, nil, withSession(sessionA))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("地址格式无效返回400", func(t *testing.T) {
		s := setupTestServer(t)
		w := s.do(http.MethodGet, "/v1/emails/not-an-address", nil, withSession(sessionA))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestInboundWebhook(t *testing.T) {
	t.Run("密钥错误返回401", func(t *testing.T) {
		s := setupTestServer(t)
		w := s.do(http.MethodPost, "/v1/hooks/inbound", inbound("x@tempinbox.dev", "m1"), withWebhookSecret("wrong"))
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		w = s.do(http.MethodPost, "/v1/hooks/inbound", inbound("x@tempinbox.dev", "m1"))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("不存在的地址仍返回202", func(t *testing.T) {
		s := setupTestServer(t)
		w := s.do(http.MethodPost, "/v1/hooks/inbound", inbound("nobody@tempinbox.dev", "m1"), withWebhookSecret(testWebhookSecret))
		require.Equal(t, http.StatusAccepted, w.Code)

		var result InboundMailResponse
		decode(t, w, &result)
		assert.Equal(t, outcomeRejected, result.Outcome)
	})

	t.Run("缺少收件人返回400", func(t *testing.T) {
		s := setupTestServer(t)
		w := s.do(http.MethodPost, "/v1/hooks/inbound", InboundMailRequest{Subject: "x"}, withWebhookSecret(testWebhookSecret))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("免费套餐确认但不保存", func(t *testing.T) {
		s := setupTestServer(t)
		email := s.createEmail(t, nil, withSession(sessionA))

		w := s.do(http.MethodPost, "/v1/hooks/inbound", inbound(email.Address, "m1"), withWebhookSecret(testWebhookSecret))
		require.Equal(t, http.StatusAccepted, w.Code)
		var result InboundMailResponse
		decode(t, w, &result)
		assert.Equal(t, string(service.OutcomeDiscarded), result.Outcome)

		w = s.do(http.MethodGet, "/v1/inbox/"+email.Address, nil, withSession(sessionA))
		require.Equal(t, http.StatusOK, w.Code)
		var inbox InboxResponse
		decode(t, w, &inbox)
		assert.Empty(t, inbox.Messages)
	})

	t.Run("付费套餐保存邮件且按 messageId 去重", func(t *testing.T) {
		s := setupTestServer(t)
		token := s.userToken(t, "u-standard", domain.PlanStandard)
		email := s.createEmail(t, nil, withBearer(token))

		for i := 0; i < 2; i++ {
			w := s.do(http.MethodPost, "/v1/hooks/inbound", inbound(email.Address, "<dup@example.com>"), withWebhookSecret(testWebhookSecret))
			require.Equal(t, http.StatusAccepted, w.Code)
		}

		w := s.do(http.MethodGet, "/v1/inbox/"+email.Address, nil, withBearer(token))
		require.Equal(t, http.StatusOK, w.Code)
		var inbox InboxResponse
		decode(t, w, &inbox)
		require.Len(t, inbox.Messages, 1)
		assert.Equal(t, "验证码", inbox.Messages[0].Subject)
		assert.False(t, inbox.Messages[0].IsRead)

		messageID := inbox.Messages[0].ID
		w = s.do(http.MethodPost, "/v1/inbox/"+email.Address+"/messages/"+messageID+"/read", nil, withBearer(token))
		assert.Equal(t, http.StatusNoContent, w.Code)

		w = s.do(http.MethodGet, "/v1/inbox/"+email.Address, nil, withBearer(token))
		inbox = InboxResponse{}
		decode(t, w, &inbox)
		assert.True(t, inbox.Messages[0].IsRead)

		unread := false
		w = s.do(http.MethodPost, "/v1/inbox/"+email.Address+"/messages/"+messageID+"/read", MarkReadRequest{Read: &unread}, withBearer(token))
		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("下载附件", func(t *testing.T) {
		s := setupTestServer(t)
		token := s.userToken(t, "u-standard", domain.PlanStandard)
		email := s.createEmail(t, nil, withBearer(token))

		req := inbound(email.Address, "with-attachment")
		req.Attachments = []InboundAttachment{
			{Filename: "report.pdf", ContentType: "application/pdf", Content: []byte("%PDF-1.4 report")},
			{Filename: "setup.exe", ContentType: "application/octet-stream", Content: []byte("MZ...")},
		}
		w := s.do(http.MethodPost, "/v1/hooks/inbound", req, withWebhookSecret(testWebhookSecret))
		require.Equal(t, http.StatusAccepted, w.Code)

		w = s.do(http.MethodGet, "/v1/inbox/"+email.Address, nil, withBearer(token))
		var inbox InboxResponse
		decode(t, w, &inbox)
		require.Len(t, inbox.Messages, 1)
		require.Len(t, inbox.Messages[0].Attachments, 1, "可执行附件被过滤")
		att := inbox.Messages[0].Attachments[0]

		path := "/v1/inbox/" + email.Address + "/messages/" + inbox.Messages[0].ID + "/attachments/" + att.ID
		w = s.do(http.MethodGet, path, nil, withBearer(token))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "%PDF-1.4 report", w.Body.String())
		assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))

		w = s.do(http.MethodGet, path, nil, withSession(sessionA))
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestPlanHook(t *testing.T) {
	t.Run("计费推送的套餐优先于令牌", func(t *testing.T) {
		s := setupTestServer(t)
		w := s.do(http.MethodPut, "/v1/hooks/plans/u-1", SetPlanRequest{Plan: "Premium"}, withWebhookSecret(testWebhookSecret))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		token := s.userToken(t, "u-1", domain.PlanFree)
		email := s.createEmail(t, nil, withBearer(token))
		assert.Equal(t, domain.PlanPremium, email.Plan)
	})

	t.Run("未知或匿名套餐返回400", func(t *testing.T) {
		s := setupTestServer(t)
		w := s.do(http.MethodPut, "/v1/hooks/plans/u-1", SetPlanRequest{Plan: "gold"}, withWebhookSecret(testWebhookSecret))
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = s.do(http.MethodPut, "/v1/hooks/plans/u-1", SetPlanRequest{Plan: "anonymous"}, withWebhookSecret(testWebhookSecret))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestDomains(t *testing.T) {
	t.Run("列出可用域名", func(t *testing.T) {
		s := setupTestServer(t)
		w := s.do(http.MethodGet, "/v1/domains", nil, withSession(sessionA))
		require.Equal(t, http.StatusOK, w.Code)
		var domains []string
		decode(t, w, &domains)
		assert.Equal(t, []string{"tempinbox.dev"}, domains)
	})

	t.Run("自定义域名仅对付费用户开放", func(t *testing.T) {
		s := setupTestServer(t)
		body := AddCustomDomainRequest{Domain: "mail.example.org"}

		w := s.do(http.MethodPost, "/v1/user/domains", body, withSession(sessionA))
		assert.Equal(t, http.StatusForbidden, w.Code)

		w = s.do(http.MethodPost, "/v1/user/domains", body, withBearer(s.userToken(t, "u-free", domain.PlanFree)))
		assert.Equal(t, http.StatusForbidden, w.Code)

		token := s.userToken(t, "u-paid", domain.PlanStandard)
		w = s.do(http.MethodPost, "/v1/user/domains", body, withBearer(token))
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		var created CustomDomainResponse
		decode(t, w, &created)
		assert.Equal(t, domain.DomainStatusPending, created.Status)
		assert.True(t, strings.HasPrefix(created.TXTRecord, domain.VerifyRecordPrefix))

		w = s.do(http.MethodPost, "/v1/user/domains", body, withBearer(token))
		assert.Equal(t, http.StatusConflict, w.Code)

		w = s.do(http.MethodGet, "/v1/user/domains", nil, withBearer(token))
		var items []CustomDomainResponse
		decode(t, w, &items)
		assert.Len(t, items, 1)

		w = s.do(http.MethodDelete, "/v1/user/domains/"+created.ID, nil, withBearer(token))
		assert.Equal(t, http.StatusNoContent, w.Code)
	})
}

func TestHealth(t *testing.T) {
	s := setupTestServer(t)
	w := s.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/v1/unknown", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
