package service

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/doqment/docqa-be/types"
)

// Extractor is the document-analysis boundary: it turns a stored document
// file into page-level text, ideally with paragraph bounding boxes. The
// chunker degrades gracefully when an implementation supplies no boxes.
type Extractor interface {
	Extract(ctx context.Context, filePath, documentID string) (*types.ExtractedDocument, error)
}

// PdftotextExtractor extracts page text locally with the poppler utilities
// (pdfinfo for the page count, pdftotext per page). It reports no paragraph
// positions.
type PdftotextExtractor struct{}

func NewPdftotextExtractor() *PdftotextExtractor {
	return &PdftotextExtractor{}
}

func (e *PdftotextExtractor) Extract(ctx context.Context, filePath, documentID string) (*types.ExtractedDocument, error) {
	totalPages, err := getNumPages(ctx, filePath)
	if err != nil {
		return nil, err
	}
	log.Println("Total pages: ", totalPages)

	doc := &types.ExtractedDocument{
		DocumentID: documentID,
		Pages:      make([]types.ExtractedPage, 0, totalPages),
	}
	for pageNum := 1; pageNum <= totalPages; pageNum++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text, err := extractPageText(ctx, filePath, pageNum)
		if err != nil {
			log.Printf("Warning: failed to extract text from page %d: %v", pageNum, err)
			text = "" // the chunker skips empty pages
		}
		doc.Pages = append(doc.Pages, types.ExtractedPage{
			PageNumber: pageNum,
			Content:    cleanText(text),
		})
	}
	return doc, nil
}

// extractPageText extracts text from a single page using pdftotext.
func extractPageText(ctx context.Context, filePath string, pageNumber int) (string, error) {
	cmd := exec.CommandContext(ctx, "pdftotext",
		"-f", strconv.Itoa(pageNumber),
		"-l", strconv.Itoa(pageNumber),
		"-enc", "UTF-8", "-nopgbrk",
		filePath, "-")
	var out bytes.Buffer
	cmd.Stdout = &out

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("failed to run pdftotext for page %d: %v", pageNumber, err)
	}
	return out.String(), nil
}

// getNumPages uses pdfinfo to get the total number of pages in a PDF file.
func getNumPages(ctx context.Context, pdfPath string) (int, error) {
	cmd := exec.CommandContext(ctx, "pdfinfo", pdfPath)
	var out bytes.Buffer
	cmd.Stdout = &out

	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("error running pdfinfo: %v", err)
	}

	scanner := bufio.NewScanner(&out)
	re := regexp.MustCompile(`Pages:\s+(\d+)`)
	for scanner.Scan() {
		line := scanner.Text()
		if matches := re.FindStringSubmatch(line); len(matches) == 2 {
			return strconv.Atoi(matches[1])
		}
	}

	return 0, fmt.Errorf("unable to determine page count from pdfinfo")
}

func cleanText(text string) string {
	replacements := map[string]string{
		"\x00": "",   // Null character
		"\uFFFD": "",   // Unicode replacement character
		"\x1b": "",   // Escape character
		"\r":     "",   // Carriage return
		"\f":     "\n", // Form feed to newline
		"  ":     " ",  // Multiple spaces to single space
	}
	cleaned := text
	for old, new := range replacements {
		cleaned = strings.ReplaceAll(cleaned, old, new)
	}
	return strings.TrimSpace(cleaned)
}
