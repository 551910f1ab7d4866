// internal/extraction/offline.go
package extraction

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/dslipak/pdf"

	"resume-ingest/internal/common/logger"
	"resume-ingest/internal/models"
)

const docxMimeType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// OfflineProvider extracts text without any network dependency: page
// text objects for PDF, the document XML part for DOCX.
type OfflineProvider struct {
	logger logger.Logger
}

func NewOfflineProvider(log logger.Logger) *OfflineProvider {
	return &OfflineProvider{logger: log}
}

func (p *OfflineProvider) Name() string { return "offline" }

func (p *OfflineProvider) Extract(ctx context.Context, fileBytes []byte, mimeType string) (*models.ExtractionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch {
	case mimeType == "application/pdf" || strings.HasSuffix(mimeType, "/pdf"):
		return p.extractPDF(fileBytes)
	case mimeType == docxMimeType || strings.HasSuffix(mimeType, "wordprocessingml.document"):
		return p.extractDOCX(fileBytes)
	default:
		return nil, fmt.Errorf("offline extraction unsupported for %q", mimeType)
	}
}

func (p *OfflineProvider) extractPDF(fileBytes []byte) (*models.ExtractionResult, error) {
	reader, err := pdf.NewReader(bytes.NewReader(fileBytes), int64(len(fileBytes)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	var (
		sb        strings.Builder
		pages     []models.PageStats
		warnings  []string
		withText  int
		pageTotal = reader.NumPage()
	)

	for i := 1; i <= pageTotal; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, models.PageStats{Page: i})
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("pdf page %d unreadable: %v", i, err))
			pages = append(pages, models.PageStats{Page: i})
			continue
		}

		chars := charCount(text)
		if chars > 0 {
			withText++
		}
		sb.WriteString(text)
		sb.WriteString("\n")
		pages = append(pages, models.PageStats{Page: i, Chars: chars})
	}

	coverage := 0.0
	if pageTotal > 0 {
		coverage = float64(withText) / float64(pageTotal)
	}

	text := sb.String()
	return &models.ExtractionResult{
		Text:         text,
		TotalChars:   charCount(text),
		PageCount:    pageTotal,
		Warnings:     warnings,
		ModeUsed:     models.ModeOfflinePDF,
		Coverage:     coverage,
		PerPageStats: pages,
		Provider:     p.Name(),
	}, nil
}

func (p *OfflineProvider) extractDOCX(fileBytes []byte) (*models.ExtractionResult, error) {
	archive, err := zip.NewReader(bytes.NewReader(fileBytes), int64(len(fileBytes)))
	if err != nil {
		return nil, fmt.Errorf("open docx archive: %w", err)
	}

	var docXML *zip.File
	var appXML *zip.File
	for _, f := range archive.File {
		switch f.Name {
		case "word/document.xml":
			docXML = f
		case "docProps/app.xml":
			appXML = f
		}
	}
	if docXML == nil {
		return nil, fmt.Errorf("docx missing word/document.xml")
	}

	text, err := extractDocumentXML(docXML)
	if err != nil {
		return nil, fmt.Errorf("parse document.xml: %w", err)
	}

	pageCount := 1
	var warnings []string
	if appXML != nil {
		if n, err := readDocxPageCount(appXML); err == nil && n > 0 {
			pageCount = n
		}
	} else {
		warnings = append(warnings, "docx app properties missing, assuming single page")
	}

	total := charCount(text)
	coverage := 0.0
	if total > 0 {
		coverage = 1.0
	}

	return &models.ExtractionResult{
		Text:       text,
		TotalChars: total,
		PageCount:  pageCount,
		Warnings:   warnings,
		ModeUsed:   models.ModeOfflineDocx,
		Coverage:   coverage,
		Provider:   p.Name(),
	}, nil
}

// extractDocumentXML walks the main document part, collecting text runs
// and turning paragraph, break, and tab elements into whitespace.
func extractDocumentXML(f *zip.File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	var sb strings.Builder
	decoder := xml.NewDecoder(rc)
	inText := false

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				sb.WriteString("\t")
			case "br":
				sb.WriteString("\n")
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
	return sb.String(), nil
}

type docxAppProperties struct {
	Pages int `xml:"Pages"`
}

func readDocxPageCount(f *zip.File) (int, error) {
	rc, err := f.Open()
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	var props docxAppProperties
	if err := xml.NewDecoder(rc).Decode(&props); err != nil {
		return 0, err
	}
	return props.Pages, nil
}
