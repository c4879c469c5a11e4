package security

import (
	"bytes"
	"mime"
	"path/filepath"
	"strings"

	"tempinbox/backend/internal/domain"
)

// 拒绝原因，同时作为指标标签
const (
	ReasonExtension  = "extension"
	ReasonExecutable = "executable"
	ReasonMimeType   = "mime_type"
)

// AttachmentScreener 附件安全检查器
//
// 只做拒绝列表检查：危险扩展名、可执行文件魔数与可执行 MIME 类型。
// 其他类型一律放行，由套餐的附件预算决定是否保存。
type AttachmentScreener struct {
	dangerousExtensions map[string]bool
	blockedMimeTypes    map[string]bool
}

// NewAttachmentScreener 创建附件安全检查器
func NewAttachmentScreener() *AttachmentScreener {
	return &AttachmentScreener{
		dangerousExtensions: map[string]bool{
			".exe": true,
			".bat": true,
			".cmd": true,
			".scr": true,
			".pif": true,
			".com": true,
			".vbs": true,
			".js":  true,
			".jar": true,
			".msi": true,
			".ps1": true,
			".hta": true,
		},
		blockedMimeTypes: map[string]bool{
			"application/x-msdownload":    true,
			"application/x-msdos-program": true,
			"application/x-executable":    true,
			"application/x-sh":            true,
			"application/java-archive":    true,
			"application/x-ms-installer":  true,
			"application/hta":             true,
			"application/x-ms-shortcut":   true,
		},
	}
}

// Screen 检查附件，不安全时返回 false 与拒绝原因
func (s *AttachmentScreener) Screen(att *domain.Attachment) (bool, string) {
	ext := strings.ToLower(filepath.Ext(att.Filename))
	if s.dangerousExtensions[ext] {
		return false, ReasonExtension
	}

	if att.ContentType != "" {
		if mediaType, _, err := mime.ParseMediaType(att.ContentType); err == nil && s.blockedMimeTypes[mediaType] {
			return false, ReasonMimeType
		}
	}

	if isExecutable(att.Content) {
		return false, ReasonExecutable
	}

	return true, ""
}

// Filter 返回通过检查的附件，以及每个被拒绝附件的原因
func (s *AttachmentScreener) Filter(attachments []domain.Attachment) ([]domain.Attachment, []string) {
	kept := attachments[:0:0]
	var rejected []string
	for i := range attachments {
		if ok, reason := s.Screen(&attachments[i]); !ok {
			rejected = append(rejected, reason)
			continue
		}
		kept = append(kept, attachments[i])
	}
	return kept, rejected
}

// isExecutable 检查文件魔数
func isExecutable(header []byte) bool {
	executableSignatures := [][]byte{
		{0x4D, 0x5A},             // PE executable
		{0x7F, 0x45, 0x4C, 0x46}, // ELF executable
		{0xFE, 0xED, 0xFA, 0xCE}, // Mach-O executable
		{0xCE, 0xFA, 0xED, 0xFE}, // Mach-O executable (reverse)
	}

	for _, sig := range executableSignatures {
		if bytes.HasPrefix(header, sig) {
			return true
		}
	}
	return false
}
