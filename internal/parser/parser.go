package parser

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/tealeg/xlsx"
	"github.com/xuri/excelize/v2"

	"pdfchat/internal/models"
)

const defaultPageNumber = 1

// Parse extracts text sections from an uploaded document. The format is
// chosen by file extension. Sections come back in document order; for paged
// formats each section carries its page number.
func Parse(filename string, content []byte) ([]models.Section, error) {
	if len(content) == 0 {
		return nil, fmt.Errorf("empty file")
	}

	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".pdf":
		return parsePDF(filename, content)
	case ".docx":
		return parseDOCX(filename, content)
	case ".pptx":
		return parsePPTX(filename, content)
	case ".xlsx":
		return parseXLSX(filename, content)
	case ".ods":
		return parseODS(filename, content)
	case ".md":
		return parseMarkdown(filename, content)
	case ".txt":
		return parseText(filename, content)
	default:
		return nil, fmt.Errorf("unsupported file format: %s", ext)
	}
}

func parsePDF(filename string, content []byte) ([]models.Section, error) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, err
	}

	var sections []models.Section
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		if strings.TrimSpace(pageText) == "" {
			continue
		}
		sections = append(sections, models.Section{
			Content:        pageText,
			SourceFilename: filename,
			PageNumber:     i,
		})
	}
	if len(sections) == 0 {
		return nil, fmt.Errorf("no extractable text")
	}
	return sections, nil
}

func parseDOCX(filename string, content []byte) ([]models.Section, error) {
	r, err := docx.ReadDocxFromMemory(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, err
	}
	defer r.Close()

	doc := r.Editable()
	paragraphs := strings.Split(doc.GetContent(), "\n")
	var sections []models.Section
	for _, p := range paragraphs {
		if strings.TrimSpace(p) == "" {
			continue
		}
		sections = append(sections, models.Section{
			Content:        p,
			SourceFilename: filename,
			PageNumber:     defaultPageNumber, // DOCX has no page numbers
		})
	}
	if len(sections) == 0 {
		return nil, fmt.Errorf("no extractable text")
	}
	return sections, nil
}

func parsePPTX(filename string, content []byte) ([]models.Section, error) {
	f, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, err
	}

	var sections []models.Section
	slideNum := 0
	for _, file := range f.File {
		if !strings.HasPrefix(file.Name, "ppt/slides/slide") {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			continue
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			continue
		}
		slideNum++
		slideText := extractTextFromXML(string(data))
		if strings.TrimSpace(slideText) == "" {
			continue
		}
		sections = append(sections, models.Section{
			Content:        slideText,
			SourceFilename: filename,
			PageNumber:     slideNum,
		})
	}
	if len(sections) == 0 {
		return nil, fmt.Errorf("no extractable text")
	}
	return sections, nil
}

func parseXLSX(filename string, content []byte) ([]models.Section, error) {
	f, err := xlsx.OpenBinary(content)
	if err != nil {
		return nil, err
	}

	var sections []models.Section
	for sheetNum, sheet := range f.Sheets {
		var text strings.Builder
		text.WriteString(fmt.Sprintf("Sheet: %s\n", sheet.Name))
		for _, row := range sheet.Rows {
			for _, cell := range row.Cells {
				text.WriteString(cell.String() + "\t")
			}
			text.WriteString("\n")
		}
		sections = append(sections, models.Section{
			Content:        text.String(),
			SourceFilename: filename,
			PageNumber:     sheetNum + 1,
		})
	}
	if len(sections) == 0 {
		return nil, fmt.Errorf("no extractable text")
	}
	return sections, nil
}

func parseODS(filename string, content []byte) ([]models.Section, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var sections []models.Section
	for sheetNum, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			continue
		}
		var text strings.Builder
		text.WriteString(fmt.Sprintf("Sheet: %s\n", sheetName))
		for _, row := range rows {
			for _, cell := range row {
				text.WriteString(cell + "\t")
			}
			text.WriteString("\n")
		}
		sections = append(sections, models.Section{
			Content:        text.String(),
			SourceFilename: filename,
			PageNumber:     sheetNum + 1,
		})
	}
	if len(sections) == 0 {
		return nil, fmt.Errorf("no extractable text")
	}
	return sections, nil
}

func parseText(filename string, content []byte) ([]models.Section, error) {
	text := string(content)
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("no extractable text")
	}
	return []models.Section{{
		Content:        text,
		SourceFilename: filename,
		PageNumber:     defaultPageNumber,
	}}, nil
}

func extractTextFromXML(xmlContent string) string {
	var text strings.Builder
	parts := strings.Split(xmlContent, "<a:t>")
	for i, part := range parts {
		if i == 0 {
			continue
		}
		endIdx := strings.Index(part, "</a:t>")
		if endIdx >= 0 {
			text.WriteString(part[:endIdx] + " ")
		}
	}
	return text.String()
}
