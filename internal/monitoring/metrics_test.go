package monitoring

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	// 每个实例使用独立的 Registry，重复创建不会 panic
	m := NewMetrics()
	_ = NewMetrics()

	m.RecordEmailCreated("free")
	m.RecordEmailCreated("free")
	m.RecordQuotaDenied("anonymous")
	m.RecordEmailsExpired(3)
	m.RecordMessagesEvicted(0)
	m.RecordMessage("stored")
	m.RecordReaperRun(errors.New("db down"), time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.EmailsCreated.WithLabelValues("free")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.QuotaDenials.WithLabelValues("anonymous")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.EmailsExpired))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.MessagesEvicted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReaperRuns.WithLabelValues("error")))

	rec := httptest.NewRecorder()
	m.HTTPHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tempinbox_emails_created_total")
}
