package filter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/mail"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"github.com/mikey/phish-scorer/internal/config"
	"github.com/mikey/phish-scorer/internal/core"
)

// headerTokenCount is how many explanation tokens go into the tokens header
const headerTokenCount = 5

// PostfixFilter implements a Postfix content filter. Mail arrives over SMTP,
// is scored, gets annotated and is reinjected into Postfix.
type PostfixFilter struct {
	scorer      *Scorer
	logger      *zap.Logger
	server      *smtp.Server
	cfg         config.ServerConfig
	postfix     config.PostfixConfig
	numFeatures int
}

// NewPostfixFilter creates a new Postfix content filter
func NewPostfixFilter(
	scorer *Scorer,
	logger *zap.Logger,
	cfg config.ServerConfig,
	postfix config.PostfixConfig,
	numFeatures int,
) *PostfixFilter {
	if cfg.SubjectPrefix == "" && cfg.ModifySubject {
		cfg.SubjectPrefix = "[PHISHING] "
	}
	if cfg.MaxMessageBytes <= 0 {
		cfg.MaxMessageBytes = 30 * 1024 * 1024
	}
	return &PostfixFilter{
		scorer:      scorer,
		logger:      logger,
		cfg:         cfg,
		postfix:     postfix,
		numFeatures: numFeatures,
	}
}

// Start starts the Postfix filter service
func (f *PostfixFilter) Start() error {
	f.server = smtp.NewServer(&smtpBackend{filter: f})
	f.server.Addr = f.cfg.ListenAddress
	f.server.Domain = "localhost"
	f.server.ReadTimeout = 30 * time.Second
	f.server.WriteTimeout = 30 * time.Second
	f.server.MaxMessageBytes = int64(f.cfg.MaxMessageBytes)
	f.server.MaxRecipients = 50
	f.server.AllowInsecureAuth = true

	f.logger.Info("Postfix filter starting", zap.String("address", f.cfg.ListenAddress))

	go func() {
		if err := f.server.ListenAndServe(); err != nil && !errors.Is(err, smtp.ErrServerClosed) {
			f.logger.Error("SMTP server error", zap.Error(err))
		}
	}()
	return nil
}

// Stop stops the Postfix filter service
func (f *PostfixFilter) Stop() error {
	if f.server != nil {
		return f.server.Close()
	}
	return nil
}

// ProcessEmail scores an email without touching SMTP
func (f *PostfixFilter) ProcessEmail(ctx context.Context, email *core.Email) (*core.FusedResult, error) {
	return f.scorer.Score(ctx, email, f.numFeatures)
}

// sendToPostfix reinjects the annotated message
func (f *PostfixFilter) sendToPostfix(sender string, recipients []string, data []byte) error {
	addr := net.JoinHostPort(f.postfix.Address, fmt.Sprintf("%d", f.postfix.Port))

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	conn, err := net.DialTimeout("tcp", addr, 10*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect to Postfix: %w", err)
	}
	if err := conn.SetDeadline(time.Now().Add(30 * time.Second)); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set connection deadline: %w", err)
	}

	c := smtp.NewClient(conn)
	defer c.Close()

	if err := c.Hello(hostname); err != nil {
		return fmt.Errorf("EHLO failed: %w", err)
	}
	if err := c.Mail(sender, nil); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}

	accepted := false
	for _, rcpt := range recipients {
		if err := c.Rcpt(rcpt, nil); err != nil {
			f.logger.Warn("RCPT TO failed for recipient",
				zap.String("recipient", rcpt),
				zap.Error(err))
			continue
		}
		accepted = true
	}
	if !accepted {
		return errors.New("all recipients were rejected")
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}
	if _, err := wc.Write(data); err != nil {
		wc.Close()
		return fmt.Errorf("failed to send email data: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	if err := c.Quit(); err != nil {
		// Already delivered
		f.logger.Warn("QUIT command failed", zap.Error(err))
	}
	return nil
}

// annotate prepends the verdict headers and optionally tags the subject
func (f *PostfixFilter) annotate(raw []byte, result *core.FusedResult, analysisErr error) []byte {
	headerEnd, bodyStart := splitHeader(raw)

	var out bytes.Buffer
	phishing := result != nil && result.IsPhishing
	score := 0.0
	tokens := ""
	if result != nil {
		score = result.OverallProbability
		tokens = topTokens(result.Importance, headerTokenCount)
	}

	fmt.Fprintf(&out, "%s: %t\r\n", f.cfg.StatusHeader, phishing)
	fmt.Fprintf(&out, "%s: %.4f\r\n", f.cfg.ScoreHeader, score)
	if tokens != "" {
		fmt.Fprintf(&out, "%s: %s\r\n", f.cfg.TokensHeader, tokens)
	}
	if analysisErr != nil {
		fmt.Fprintf(&out, "X-Phishing-Analysis-Error: %s\r\n", headerSafe(analysisErr.Error()))
	}

	header := raw[:headerEnd]
	if phishing && f.cfg.ModifySubject && f.cfg.SubjectPrefix != "" {
		header = rewriteSubject(header, f.cfg.SubjectPrefix)
	}
	out.Write(header)
	out.Write(raw[headerEnd:bodyStart])
	out.Write(raw[bodyStart:])
	return out.Bytes()
}

// splitHeader returns the end of the header block and the start of the body
func splitHeader(raw []byte) (int, int) {
	if i := bytes.Index(raw, []byte("\r\n\r\n")); i >= 0 {
		return i + 2, i + 4
	}
	if i := bytes.Index(raw, []byte("\n\n")); i >= 0 {
		return i + 1, i + 2
	}
	return len(raw), len(raw)
}

// rewriteSubject prefixes the Subject header, unfolding it first. A header
// block without a subject gains one.
func rewriteSubject(header []byte, prefix string) []byte {
	lines := strings.SplitAfter(string(header), "\n")
	var out strings.Builder
	found := false

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if found || !hasHeaderName(line, "subject") {
			out.WriteString(line)
			continue
		}
		found = true

		value := strings.TrimSpace(line[strings.IndexByte(line, ':')+1:])
		for i+1 < len(lines) && len(lines[i+1]) > 0 && (lines[i+1][0] == ' ' || lines[i+1][0] == '\t') {
			i++
			value += " " + strings.TrimSpace(lines[i])
		}

		decoded, err := decodeEncodedHeader(value)
		if err != nil {
			decoded = value
		}
		if strings.HasPrefix(decoded, prefix) {
			out.WriteString("Subject: " + value + "\r\n")
			continue
		}
		out.WriteString("Subject: " + headerSafe(prefix+decoded) + "\r\n")
	}

	if !found {
		out.WriteString("Subject: " + headerSafe(strings.TrimSpace(prefix)) + "\r\n")
	}
	return []byte(out.String())
}

func hasHeaderName(line, name string) bool {
	colon := strings.IndexByte(line, ':')
	return colon > 0 && strings.EqualFold(strings.TrimSpace(line[:colon]), name)
}

// headerSafe strips line breaks so a value cannot inject headers
func headerSafe(v string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(v)
}

// topTokens formats the strongest explanation tokens as "token:weight" pairs
func topTokens(importance map[string]float64, n int) string {
	type kv struct {
		token  string
		weight float64
	}
	pairs := make([]kv, 0, len(importance))
	for k, v := range importance {
		pairs = append(pairs, kv{k, v})
	}
	sort.Slice(pairs, func(i, j int) bool {
		ai, aj := math.Abs(pairs[i].weight), math.Abs(pairs[j].weight)
		if ai != aj {
			return ai > aj
		}
		return pairs[i].token < pairs[j].token
	})
	if len(pairs) > n {
		pairs = pairs[:n]
	}

	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = fmt.Sprintf("%s:%.2f", headerSafe(p.token), p.weight)
	}
	return strings.Join(parts, ", ")
}

// emailFromMessage builds the pipeline input from a parsed message
func emailFromMessage(msg *mail.Message, sender string, recipients []string) (*core.Email, error) {
	body, err := extractTextFromMessage(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to extract text content: %w", err)
	}

	email := &core.Email{
		From:    sender,
		To:      recipients,
		Body:    body,
		Headers: make(map[string][]string, len(msg.Header)),
	}
	for key, values := range msg.Header {
		email.Headers[key] = values
	}

	if subject := msg.Header.Get("Subject"); subject != "" {
		if decoded, err := decodeEncodedHeader(subject); err == nil {
			subject = decoded
		}
		email.Subject = subject
	}
	if email.From == "" {
		email.From = msg.Header.Get("From")
	}
	return email, nil
}

// ParseMessage reads an RFC 5322 message into the pipeline input. Sender
// and recipients come from the From and To headers.
func ParseMessage(r io.Reader) (*core.Email, error) {
	msg, err := mail.ReadMessage(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse email message: %w", err)
	}

	var to []string
	if list, err := msg.Header.AddressList("To"); err == nil {
		for _, addr := range list {
			to = append(to, addr.Address)
		}
	}
	return emailFromMessage(msg, "", to)
}

type smtpBackend struct {
	filter *PostfixFilter
}

// NewSession creates a new SMTP session
func (b *smtpBackend) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &smtpSession{filter: b.filter}, nil
}

type smtpSession struct {
	filter     *PostfixFilter
	sender     string
	recipients []string
}

func (s *smtpSession) Reset() {
	s.sender = ""
	s.recipients = nil
}

func (s *smtpSession) AuthPlain(_ []byte) error {
	return smtp.ErrAuthUnsupported
}

func (s *smtpSession) Mail(from string, _ *smtp.MailOptions) error {
	s.sender = from
	return nil
}

func (s *smtpSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.recipients = append(s.recipients, to)
	return nil
}

// Data scores the message and reinjects it
func (s *smtpSession) Data(r io.Reader) error {
	f := s.filter
	raw, err := io.ReadAll(r)
	if err != nil {
		f.logger.Error("Failed to read message data", zap.Error(err))
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	annotated, err := f.process(ctx, raw, s.sender, s.recipients)
	if err != nil {
		return err
	}

	if f.postfix.Enabled {
		if err := f.sendToPostfix(s.sender, s.recipients, annotated); err != nil {
			f.logger.Error("Failed to send email back to Postfix",
				zap.Error(err),
				zap.String("sender", s.sender))
			return err
		}
	} else {
		f.logger.Warn("Postfix forwarding disabled, this is likely a misconfiguration")
	}
	return nil
}

// process returns the annotated message, or an SMTP rejection for blocked
// phishing. Analysis failures, unparseable messages included, never block
// delivery; the message goes through with an error header instead.
func (f *PostfixFilter) process(ctx context.Context, raw []byte, sender string, recipients []string) ([]byte, error) {
	result, err := f.analyze(ctx, raw, sender, recipients)
	if err != nil {
		f.logger.Error("Failed to analyze email",
			zap.Error(err),
			zap.String("sender", sender))
		return f.annotate(raw, nil, err), nil
	}

	if result.IsPhishing && f.cfg.BlockPhishing {
		f.logger.Info("Rejecting phishing email",
			zap.String("from", sender),
			zap.String("request_id", result.RequestID),
			zap.Float64("score", result.OverallProbability))
		return nil, &smtp.SMTPError{
			Code:         550,
			EnhancedCode: smtp.EnhancedCode{5, 7, 1},
			Message:      fmt.Sprintf("Rejected as phishing (score: %.2f)", result.OverallProbability),
		}
	}

	f.logger.Info("Processed email",
		zap.String("from", sender),
		zap.String("request_id", result.RequestID),
		zap.Bool("is_phishing", result.IsPhishing),
		zap.Float64("score", result.OverallProbability))
	return f.annotate(raw, result, nil), nil
}

func (f *PostfixFilter) analyze(ctx context.Context, raw []byte, sender string, recipients []string) (*core.FusedResult, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse email message: %w", err)
	}

	email, err := emailFromMessage(msg, sender, recipients)
	if err != nil {
		return nil, fmt.Errorf("failed to extract text content: %w", err)
	}

	return f.scorer.Score(ctx, email, f.numFeatures)
}

func (s *smtpSession) Logout() error {
	return nil
}
