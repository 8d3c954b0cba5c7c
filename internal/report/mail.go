// Package report delivers failure notifications to the maintenance
// address. Reporting is fire-and-forget: a failed report is logged and
// swallowed so it never masks the error being reported.
package report

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"

	"blendr/internal/core"
)

// MailReporter sends crash reports over SMTP with the recent log
// directory attached as a zip archive. A single mutex serializes
// emission: report writing is single-writer per process.
type MailReporter struct {
	config *core.ReportConfig
	logger *zap.Logger
	mutex  sync.Mutex
}

func NewMailReporter(config *core.ReportConfig, logger *zap.Logger) *MailReporter {
	return &MailReporter{config: config, logger: logger}
}

func (r *MailReporter) Report(_ context.Context, flow core.FlowContext, cause error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	body := r.buildBody(flow, cause)

	var attachment string
	if r.config.LogDir != "" {
		archive, err := r.archiveLogs()
		if err != nil {
			r.logger.Warn("Failed to archive logs for crash report", zap.Error(err))
		} else {
			attachment = archive
		}
	}

	if err := r.send("Crash report", body, attachment); err != nil {
		r.logger.Error("Failed to send crash report", zap.Error(err))
		return
	}

	r.logger.Info("Crash report sent", zap.String("to", r.config.To))
}

func (r *MailReporter) buildBody(flow core.FlowContext, cause error) string {
	return fmt.Sprintf(
		"%s\nplatform: %s/%s\ngo: %s\nhost: %s\n\ncommand: %s\nuser: %s\ntime range: %s\nplaylist: %s\nfriend: %s\n\nerror: %v\n",
		time.Now().Format("2006-01-02 15:04:05"),
		runtime.GOOS, runtime.GOARCH,
		runtime.Version(),
		hostname(),
		flow.Command, flow.Username, flow.TimeRange, flow.PlaylistName, flow.Friend,
		cause,
	)
}

// archiveLogs zips the configured log directory into the temp dir and
// returns the archive path.
func (r *MailReporter) archiveLogs() (string, error) {
	archivePath := filepath.Join(os.TempDir(),
		fmt.Sprintf("blendr_logs_%s.zip", time.Now().Format("2006-01-02")))

	out, err := os.Create(archivePath)
	if err != nil {
		return "", err
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	defer zw.Close()

	err = filepath.Walk(r.config.LogDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}

		rel, err := filepath.Rel(r.config.LogDir, path)
		if err != nil {
			return err
		}

		w, err := zw.Create(rel)
		if err != nil {
			return err
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		_, err = io.Copy(w, f)
		return err
	})
	if err != nil {
		return "", err
	}

	return archivePath, nil
}

func (r *MailReporter) send(subject, body, attachmentPath string) error {
	msg, err := buildMessage(r.config.From, r.config.To, subject, body, attachmentPath)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", r.config.SMTPHost, r.config.SMTPPort)
	auth := smtp.PlainAuth("", r.config.From, r.config.Password, r.config.SMTPHost)

	return smtp.SendMail(addr, auth, r.config.From, []string{r.config.To}, msg)
}

func buildMessage(from, to, subject, body, attachmentPath string) ([]byte, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fmt.Fprintf(&buf, "From: %s\r\nTo: %s\r\nSubject: %s\r\n", from, to, subject)
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\nContent-Type: multipart/mixed; boundary=%q\r\n\r\n", mw.Boundary())

	text, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {"text/plain; charset=utf-8"}})
	if err != nil {
		return nil, err
	}
	if _, err := text.Write([]byte(body)); err != nil {
		return nil, err
	}

	if attachmentPath != "" {
		data, err := os.ReadFile(attachmentPath)
		if err != nil {
			return nil, err
		}

		part, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {"application/octet-stream"},
			"Content-Transfer-Encoding": {"base64"},
			"Content-Disposition":       {fmt.Sprintf("attachment; filename=%q", filepath.Base(attachmentPath))},
		})
		if err != nil {
			return nil, err
		}

		encoded := make([]byte, base64.StdEncoding.EncodedLen(len(data)))
		base64.StdEncoding.Encode(encoded, data)
		if _, err := part.Write(encoded); err != nil {
			return nil, err
		}
	}

	if err := mw.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return h
}

// NoopReporter discards reports. Used when mail reporting is disabled.
type NoopReporter struct{}

func (NoopReporter) Report(context.Context, core.FlowContext, error) {}
