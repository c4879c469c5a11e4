package security

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"tempinbox/backend/internal/domain"
)

func TestAttachmentScreener(t *testing.T) {
	s := NewAttachmentScreener()

	tests := []struct {
		name   string
		att    domain.Attachment
		ok     bool
		reason string
	}{
		{"普通图片", domain.Attachment{Filename: "photo.PNG", ContentType: "image/png", Content: []byte{0x89, 'P', 'N', 'G'}}, true, ""},
		{"危险扩展名", domain.Attachment{Filename: "invoice.pdf.exe", ContentType: "application/pdf"}, false, ReasonExtension},
		{"可执行MIME", domain.Attachment{Filename: "setup", ContentType: "application/x-msdownload; name=setup"}, false, ReasonMimeType},
		{"PE魔数", domain.Attachment{Filename: "report.pdf", ContentType: "application/pdf", Content: []byte{0x4D, 0x5A, 0x90}}, false, ReasonExecutable},
		{"无法解析的MIME放行", domain.Attachment{Filename: "a.txt", ContentType: ";;", Content: []byte("hello")}, true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason := s.Screen(&tt.att)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.reason, reason)
		})
	}

	t.Run("过滤保持顺序", func(t *testing.T) {
		kept, rejected := s.Filter([]domain.Attachment{
			{Filename: "a.txt"},
			{Filename: "b.bat"},
			{Filename: "c.txt"},
		})
		assert.Len(t, kept, 2)
		assert.Equal(t, "a.txt", kept[0].Filename)
		assert.Equal(t, "c.txt", kept[1].Filename)
		assert.Equal(t, []string{ReasonExtension}, rejected)
	})
}
