package services

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"html/template"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

//go:embed templates/fee_statement.html
var feeStatementTemplate string

var statementTmpl = template.Must(template.New("fee_statement").Funcs(template.FuncMap{
	"money": func(d decimal.Decimal) string { return d.StringFixed(centPlaces) },
	"date":  func(t time.Time) string { return t.Format("January 2, 2006") },
}).Parse(feeStatementTemplate))

// PDFRenderer turns an HTML document into PDF bytes.
type PDFRenderer interface {
	RenderPDF(ctx context.Context, html string) ([]byte, error)
}

// FileStore keeps generated documents and returns a public URL for them.
type FileStore interface {
	Upload(ctx context.Context, data []byte, publicID string) (string, error)
}

// StatementService renders a fee statement for one enrollment and publishes it.
type StatementService struct {
	plans    *FeePlanService
	renderer PDFRenderer
	store    FileStore
}

func NewStatementService(plans *FeePlanService, renderer PDFRenderer, store FileStore) *StatementService {
	return &StatementService{plans: plans, renderer: renderer, store: store}
}

type statementData struct {
	*PlanSummary
	GeneratedOn string
}

// RenderHTML builds the statement document from the current plan summary.
func (s *StatementService) RenderHTML(ctx context.Context, enrollmentID uuid.UUID) (string, error) {
	summary, err := s.plans.GetPlan(ctx, enrollmentID)
	if err != nil {
		return "", err
	}
	var out bytes.Buffer
	data := statementData{PlanSummary: summary, GeneratedOn: s.plans.cfg.now().Format("January 2, 2006")}
	if err := statementTmpl.Execute(&out, data); err != nil {
		return "", err
	}
	return out.String(), nil
}

// Generate renders the statement to PDF, uploads it and returns its URL.
func (s *StatementService) Generate(ctx context.Context, enrollmentID uuid.UUID) (string, error) {
	html, err := s.RenderHTML(ctx, enrollmentID)
	if err != nil {
		return "", err
	}
	pdf, err := s.renderer.RenderPDF(ctx, html)
	if err != nil {
		return "", fmt.Errorf("render statement pdf: %w", err)
	}
	publicID := fmt.Sprintf("statements/%s_%s", enrollmentID, s.plans.cfg.now().Format("20060102150405"))
	url, err := s.store.Upload(ctx, pdf, publicID)
	if err != nil {
		return "", fmt.Errorf("upload statement: %w", err)
	}
	return url, nil
}

// ChromePDFRenderer prints HTML to PDF in a headless Chrome.
type ChromePDFRenderer struct{}

func (ChromePDFRenderer) RenderPDF(ctx context.Context, html string) ([]byte, error) {
	ctx, cancel := chromedp.NewContext(ctx)
	defer cancel()

	var pdfBuffer []byte
	err := chromedp.Run(ctx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frameTree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frameTree.Frame.ID, html).Do(ctx)
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

// CloudinaryStore uploads raw files into one Cloudinary folder.
type CloudinaryStore struct {
	cld    *cloudinary.Cloudinary
	folder string
}

func NewCloudinaryStore(cloudinaryURL, folder string) (*CloudinaryStore, error) {
	cld, err := cloudinary.NewFromURL(cloudinaryURL)
	if err != nil {
		return nil, err
	}
	return &CloudinaryStore{cld: cld, folder: folder}, nil
}

func (c *CloudinaryStore) Upload(ctx context.Context, data []byte, publicID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	uploadResult, err := c.cld.Upload.Upload(ctx, bytes.NewReader(data), uploader.UploadParams{
		PublicID:     publicID,
		Folder:       c.folder,
		ResourceType: "raw",
	})
	if err != nil {
		return "", err
	}
	return uploadResult.SecureURL, nil
}
