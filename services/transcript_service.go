package services

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"
	config "github.com/mwenda27/chat_link/configs"
	"github.com/mwenda27/chat_link/database"
	"github.com/mwenda27/chat_link/models"
)

// Moderation evidence: a reported conversation rendered to PDF and stored
// alongside the other uploads, so a report can be acted on even after
// either party deletes their account.

const transcriptTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>
  body { font-family: Helvetica, Arial, sans-serif; margin: 40px; color: #1a1a1a; }
  h1 { font-size: 20px; border-bottom: 2px solid #444; padding-bottom: 8px; }
  .meta { color: #666; font-size: 12px; margin-bottom: 24px; }
  .msg { margin: 10px 0; }
  .sender { font-weight: bold; }
  .time { color: #999; font-size: 11px; margin-left: 8px; }
  .attachment { color: #0b5394; font-style: italic; }
</style>
</head>
<body>
<h1>Conversation transcript</h1>
<p class="meta">{{.User1}} ↔ {{.User2}} · exported {{.ExportedAt}} · {{len .Messages}} message(s)</p>
{{range .Messages}}
<div class="msg">
  <span class="sender">{{.Sender}}</span><span class="time">{{.SentAt}}</span><br>
  {{if .Content}}{{.Content}}{{end}}
  {{if .Attachment}}<span class="attachment">[{{.Kind}}: {{.Attachment}}]</span>{{end}}
</div>
{{end}}
</body>
</html>`

type transcriptMessage struct {
	Sender     string
	SentAt     string
	Content    string
	Attachment string
	Kind       string
}

type transcriptData struct {
	User1      string
	User2      string
	ExportedAt string
	Messages   []transcriptMessage
}

// ExportTranscript renders a conversation's full history to PDF and uploads
// it, returning the public URL.
func ExportTranscript(ctx context.Context, convID uuid.UUID) (string, error) {
	var conv models.Conversation
	if err := database.DB.First(&conv, "id = ?", convID).Error; err != nil {
		return "", err
	}

	names := map[uuid.UUID]string{
		conv.User1ID: conv.User1ID.String(),
		conv.User2ID: conv.User2ID.String(),
	}
	var participants []models.User
	if err := database.DB.
		Select("id", "username").
		Find(&participants, "id IN ?", []uuid.UUID{conv.User1ID, conv.User2ID}).Error; err == nil {
		for _, p := range participants {
			names[p.ID] = p.Username
		}
	}

	var messages []models.Message
	if err := database.DB.
		Where("conversation_id = ?", convID).
		Order("created_at asc").
		Find(&messages).Error; err != nil {
		return "", err
	}

	data := transcriptData{
		User1:      names[conv.User1ID],
		User2:      names[conv.User2ID],
		ExportedAt: time.Now().Format("January 2, 2006 15:04"),
	}
	for _, m := range messages {
		tm := transcriptMessage{
			Sender: names[m.SenderID],
			SentAt: m.CreatedAt.Format("2006-01-02 15:04"),
			Kind:   m.MessageType,
		}
		if m.Content != nil {
			tm.Content = *m.Content
		}
		if m.FileName != nil {
			tm.Attachment = *m.FileName
		} else if m.FileURL != nil {
			tm.Attachment = *m.FileURL
		}
		data.Messages = append(data.Messages, tm)
	}

	html, err := renderTranscriptHTML(data)
	if err != nil {
		return "", fmt.Errorf("render transcript: %w", err)
	}
	pdfBytes, err := generatePDFFromHTML(html)
	if err != nil {
		return "", fmt.Errorf("print transcript: %w", err)
	}
	return uploadTranscriptPDF(pdfBytes, convID)
}

func renderTranscriptHTML(data transcriptData) (string, error) {
	tmpl, err := template.New("transcript").Parse(transcriptTemplate)
	if err != nil {
		return "", err
	}
	var rendered bytes.Buffer
	if err := tmpl.Execute(&rendered, data); err != nil {
		return "", err
	}
	return rendered.String(), nil
}

func generatePDFFromHTML(htmlContent string) ([]byte, error) {
	ctx, cancel := chromedp.NewContext(context.Background())
	defer cancel()

	var pdfBuffer []byte
	err := chromedp.Run(ctx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frameTree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frameTree.Frame.ID, htmlContent).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			pdf, _, err := page.PrintToPDF().WithPrintBackground(true).Do(ctx)
			if err != nil {
				return err
			}
			pdfBuffer = pdf
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}
	return pdfBuffer, nil
}

func uploadTranscriptPDF(fileBytes []byte, convID uuid.UUID) (string, error) {
	cld, err := cloudinary.NewFromURL(config.Config("CLOUDINARY_URL"))
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	uploadResult, err := cld.Upload.Upload(ctx, bytes.NewReader(fileBytes), uploader.UploadParams{
		PublicID:     fmt.Sprintf("transcripts/%s_%s", convID, uuid.New()),
		Folder:       "chat_link_transcripts",
		ResourceType: "raw",
	})
	if err != nil {
		return "", err
	}
	return uploadResult.SecureURL, nil
}
