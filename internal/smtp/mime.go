package smtp

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"

	"tempinbox/backend/internal/domain"
)

// ParsedEmail 表示解析后的邮件内容。
type ParsedEmail struct {
	MessageID   string
	Subject     string
	From        string
	To          string
	Date        time.Time
	Text        string
	HTML        string
	Attachments []domain.Attachment
}

var headerDecoder = &mime.WordDecoder{CharsetReader: charsetReader}

// ParseEmail 解析邮件，提取文本、HTML 和附件。
func ParseEmail(rawEmail []byte) (*ParsedEmail, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(rawEmail))
	if err != nil {
		return nil, fmt.Errorf("parse mail: %w", err)
	}

	parsed := &ParsedEmail{
		MessageID: strings.Trim(strings.TrimSpace(msg.Header.Get("Message-Id")), "<>"),
		Subject:   decodeHeader(msg.Header.Get("Subject")),
		From:      decodeHeader(msg.Header.Get("From")),
		To:        decodeHeader(msg.Header.Get("To")),
	}
	if date, err := msg.Header.Date(); err == nil {
		parsed.Date = date.UTC()
	}

	mediaType, params, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	if err != nil {
		// 没有 Content-Type 或解析失败，当作纯文本处理
		body, err := decodeBody(msg.Body, msg.Header.Get("Content-Transfer-Encoding"), "")
		if err != nil {
			return nil, fmt.Errorf("decode body: %w", err)
		}
		parsed.Text = body
		return parsed, nil
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		boundary := params["boundary"]
		if boundary == "" {
			return nil, fmt.Errorf("multipart message without boundary")
		}
		if err := parseMultipart(multipart.NewReader(msg.Body, boundary), parsed); err != nil {
			return nil, fmt.Errorf("parse multipart: %w", err)
		}
		return parsed, nil
	}

	body, err := decodeBody(msg.Body, msg.Header.Get("Content-Transfer-Encoding"), params["charset"])
	if err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	if mediaType == "text/html" {
		parsed.HTML = body
	} else {
		parsed.Text = body
	}
	return parsed, nil
}

// parseMultipart 递归解析多部分邮件。
func parseMultipart(mr *multipart.Reader, parsed *ParsedEmail) error {
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		mediaType, params, err := mime.ParseMediaType(part.Header.Get("Content-Type"))
		if err != nil {
			mediaType = "text/plain"
		}
		transferEncoding := part.Header.Get("Content-Transfer-Encoding")

		if filename, ok := attachmentName(part, params); ok {
			content, err := io.ReadAll(decodeTransfer(part, transferEncoding))
			if err != nil {
				continue
			}
			parsed.Attachments = append(parsed.Attachments, domain.Attachment{
				Filename:    filename,
				ContentType: mediaType,
				Size:        int64(len(content)),
				Content:     content,
			})
			continue
		}

		if strings.HasPrefix(mediaType, "multipart/") {
			if boundary := params["boundary"]; boundary != "" {
				if err := parseMultipart(multipart.NewReader(part, boundary), parsed); err != nil {
					return err
				}
			}
			continue
		}

		body, err := decodeBody(part, transferEncoding, params["charset"])
		if err != nil {
			continue
		}
		switch mediaType {
		case "text/html":
			if parsed.HTML == "" {
				parsed.HTML = body
			}
		case "text/plain":
			if parsed.Text == "" {
				parsed.Text = body
			}
		}
	}
}

// attachmentName 判断部件是否为附件并返回文件名
//
// 带 attachment 处置或带文件名的 inline 部件都视为附件；
// 没有文件名的 inline 文本部件仍作为正文处理。
func attachmentName(part *multipart.Part, params map[string]string) (string, bool) {
	disposition, dispParams, err := mime.ParseMediaType(part.Header.Get("Content-Disposition"))
	if err != nil {
		disposition = ""
	}

	filename := dispParams["filename"]
	if filename == "" {
		filename = params["name"]
	}
	filename = decodeHeader(filename)

	switch {
	case disposition == "attachment":
		if filename == "" {
			filename = "unnamed"
		}
		return filename, true
	case filename != "":
		return filename, true
	default:
		return "", false
	}
}

func decodeTransfer(reader io.Reader, transferEncoding string) io.Reader {
	switch strings.ToLower(strings.TrimSpace(transferEncoding)) {
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, reader)
	case "quoted-printable":
		return quotedprintable.NewReader(reader)
	default:
		return reader
	}
}

// decodeBody 根据传输编码与字符集解码正文为 UTF-8。
func decodeBody(reader io.Reader, transferEncoding, charset string) (string, error) {
	body, err := io.ReadAll(decodeTransfer(reader, transferEncoding))
	if err != nil {
		return "", err
	}

	if enc := lookupCharset(charset); enc != nil {
		if converted, _, err := transform.Bytes(enc.NewDecoder(), body); err == nil {
			body = converted
		}
	}
	return string(body), nil
}

// lookupCharset 按 WHATWG 名称表查找编码，UTF-8 与 ASCII 返回 nil
func lookupCharset(charset string) encoding.Encoding {
	charset = strings.ToLower(strings.TrimSpace(charset))
	switch charset {
	case "", "utf-8", "utf8", "us-ascii":
		return nil
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil
	}
	return enc
}

func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	if enc := lookupCharset(charset); enc != nil {
		return transform.NewReader(input, enc.NewDecoder()), nil
	}
	// 未知字符集按原样返回，避免整个头部解码失败
	return input, nil
}

func decodeHeader(value string) string {
	if value == "" {
		return value
	}
	decoded, err := headerDecoder.DecodeHeader(value)
	if err != nil {
		return value
	}
	return decoded
}
