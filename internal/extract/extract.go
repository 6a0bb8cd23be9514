// Package extract turns uploaded documents into plain text.
package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/mohammadjaf013/findlanqbot/internal/utils"
)

var (
	ErrUnsupported = errors.New("unsupported document type")
	ErrInvalid     = errors.New("document could not be read")
)

// Supported lists the accepted file extensions.
var Supported = []string{".txt", ".md", ".markdown", ".csv", ".docx", ".pdf"}

// Text extracts the plain text of data, choosing the parser by file extension.
// The result is sanitized but may be empty.
func Text(fileName string, data []byte) (string, error) {
	var (
		text string
		err  error
	)
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".txt", ".md", ".markdown", ".csv":
		if !utf8.Valid(data) {
			return "", fmt.Errorf("%w: %s is not valid UTF-8", ErrInvalid, fileName)
		}
		text = string(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")))
	case ".docx":
		text, err = docxText(data)
	case ".pdf":
		text, err = pdfText(data)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupported, filepath.Ext(fileName))
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(utils.SanitizeText(text)), nil
}

func pdfText(data []byte) (text string, err error) {
	// the pdf reader panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("%w: pdf: %v", ErrInvalid, r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: pdf: %v", ErrInvalid, err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("%w: pdf text: %v", ErrInvalid, err)
	}
	buf := new(strings.Builder)
	if _, err := io.Copy(buf, plain); err != nil {
		return "", fmt.Errorf("%w: pdf read: %v", ErrInvalid, err)
	}
	return buf.String(), nil
}

// docxText reads word/document.xml; paragraphs are separated by blank lines
// so the chunker keeps them apart.
func docxText(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: docx: %v", ErrInvalid, err)
	}
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("%w: docx: %v", ErrInvalid, err)
		}
		raw, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("%w: docx: %v", ErrInvalid, err)
		}

		paras, err := docxParagraphs(bytes.NewReader(raw))
		if err != nil {
			return "", fmt.Errorf("%w: docx xml: %v", ErrInvalid, err)
		}
		return strings.Join(paras, "\n\n"), nil
	}
	return "", fmt.Errorf("%w: docx without word/document.xml", ErrInvalid)
}

// docxParagraphs walks every paragraph in document order, including those in
// tables, hyperlinks, content controls and text boxes. A nested paragraph is
// emitted on its own.
func docxParagraphs(r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)
	var (
		open     []*strings.Builder
		paras    []string
		runDepth int
		inText   bool
	)
	write := func(s string) {
		if len(open) > 0 {
			open[len(open)-1].WriteString(s)
		}
	}

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return paras, nil
		}
		if err != nil {
			return nil, err
		}

		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "p":
				open = append(open, new(strings.Builder))
			case "r":
				runDepth++
			case "t":
				inText = runDepth > 0
			case "tab":
				if runDepth > 0 {
					write("\t")
				}
			case "br", "cr":
				if runDepth > 0 {
					write("\n")
				}
			}
		case xml.EndElement:
			switch el.Name.Local {
			case "p":
				if len(open) == 0 {
					continue
				}
				text := strings.TrimSpace(open[len(open)-1].String())
				open = open[:len(open)-1]
				if text != "" {
					paras = append(paras, text)
				}
			case "r":
				if runDepth > 0 {
					runDepth--
				}
			case "t":
				inText = false
			}
		case xml.CharData:
			if inText {
				write(string(el))
			}
		}
	}
}
