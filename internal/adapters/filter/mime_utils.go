package filter

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"net/textproto"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/text/encoding/htmlindex"
)

// maxMIMEDepth bounds multipart nesting
const maxMIMEDepth = 8

var wordDecoder = &mime.WordDecoder{CharsetReader: charsetReader}

// charsetReader converts r from the named charset to UTF-8
func charsetReader(charset string, r io.Reader) (io.Reader, error) {
	name := strings.ToLower(strings.TrimSpace(charset))
	if name == "" || name == "utf-8" || name == "us-ascii" {
		return r, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %w", charset, err)
	}
	return enc.NewDecoder().Reader(r), nil
}

// decodeEncodedHeader decodes RFC 2047 encoded words such as =?ISO-8859-1?Q?caf=E9?=
func decodeEncodedHeader(value string) (string, error) {
	return wordDecoder.DecodeHeader(value)
}

// extractTextFromMessage returns the readable text of a message. text/plain
// parts are preferred; text/html parts are reduced to their text when no
// plain part exists.
func extractTextFromMessage(msg *mail.Message) (string, error) {
	plain, htmlText, err := extractPart(textproto.MIMEHeader(msg.Header), msg.Body, 0)
	if err != nil {
		return "", err
	}
	if plain != "" {
		return plain, nil
	}
	return htmlText, nil
}

func extractPart(header textproto.MIMEHeader, body io.Reader, depth int) (string, string, error) {
	mediaType, params, err := mime.ParseMediaType(header.Get("Content-Type"))
	if err != nil {
		// RFC 2045 default
		mediaType, params = "text/plain", map[string]string{"charset": "us-ascii"}
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		boundary := params["boundary"]
		if boundary == "" || depth >= maxMIMEDepth {
			return "", "", nil
		}
		return extractMultipart(multipart.NewReader(body, boundary), depth)
	}

	if !strings.HasPrefix(mediaType, "text/") || isAttachment(header) {
		return "", "", nil
	}

	decoded, err := decodePartBody(header, body, params["charset"])
	if err != nil {
		return "", "", err
	}
	if mediaType == "text/html" {
		return "", htmlToText(decoded), nil
	}
	return decoded, "", nil
}

func extractMultipart(mr *multipart.Reader, depth int) (string, string, error) {
	var plain, htmlText strings.Builder
	for {
		part, err := mr.NextRawPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Keep whatever was readable before the damage
			break
		}

		p, h, err := extractPart(part.Header, part, depth+1)
		if err != nil {
			continue
		}
		appendText(&plain, p)
		appendText(&htmlText, h)
	}
	return plain.String(), htmlText.String(), nil
}

func appendText(sb *strings.Builder, text string) {
	if text == "" {
		return
	}
	if sb.Len() > 0 {
		sb.WriteString("\n")
	}
	sb.WriteString(text)
}

func isAttachment(header textproto.MIMEHeader) bool {
	disposition, _, err := mime.ParseMediaType(header.Get("Content-Disposition"))
	return err == nil && disposition == "attachment"
}

// decodePartBody undoes the transfer encoding and converts to UTF-8
func decodePartBody(header textproto.MIMEHeader, body io.Reader, charset string) (string, error) {
	var r io.Reader = body
	switch strings.ToLower(strings.TrimSpace(header.Get("Content-Transfer-Encoding"))) {
	case "base64":
		r = base64.NewDecoder(base64.StdEncoding, newlineStripper{body})
	case "quoted-printable":
		r = quotedprintable.NewReader(body)
	}

	cr, err := charsetReader(charset, r)
	if err != nil {
		// Unknown charset, read the bytes as they are
		cr = r
	}

	data, err := io.ReadAll(cr)
	if err != nil {
		return "", fmt.Errorf("failed to read message part: %w", err)
	}
	return string(data), nil
}

// newlineStripper drops CR and LF so line-wrapped base64 decodes
type newlineStripper struct {
	r io.Reader
}

func (n newlineStripper) Read(p []byte) (int, error) {
	for {
		read, err := n.r.Read(p)
		kept := 0
		for _, b := range p[:read] {
			if b != '\r' && b != '\n' {
				p[kept] = b
				kept++
			}
		}
		if kept > 0 || err != nil {
			return kept, err
		}
	}
}

// htmlToText keeps text nodes and link targets, skipping script and style
func htmlToText(doc string) string {
	z := html.NewTokenizer(strings.NewReader(doc))
	var sb strings.Builder
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.TrimSpace(sb.String())
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			tag := string(name)
			if tag == "script" || tag == "style" {
				skip++
				continue
			}
			if tag == "a" && hasAttr {
				for {
					key, val, more := z.TagAttr()
					if string(key) == "href" && strings.HasPrefix(strings.ToLower(string(val)), "http") {
						sb.WriteString(" ")
						sb.Write(val)
						sb.WriteString(" ")
					}
					if !more {
						break
					}
				}
			}
			if tag == "br" || tag == "p" || tag == "div" {
				sb.WriteString("\n")
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if tag := string(name); (tag == "script" || tag == "style") && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip == 0 {
				sb.Write(bytes.TrimSpace(z.Text()))
				sb.WriteString(" ")
			}
		}
	}
}
