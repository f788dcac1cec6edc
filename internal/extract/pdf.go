package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"driverag/internal/domain"
)

// PDFText concatenates the plain text of every page in page order. Pages that
// fail to decode contribute an empty string.
func PDFText(data []byte) (text string, err error) {
	// the pdf reader panics on some structurally broken inputs
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("%w: %v", domain.ErrMalformedContent, r)
		}
	}()

	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty pdf", domain.ErrMalformedContent)
	}
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrMalformedContent, err)
	}

	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		b.WriteString(pageText(r.Page(i)))
	}
	return b.String(), nil
}

func pageText(p pdf.Page) (text string) {
	defer func() {
		if recover() != nil {
			text = ""
		}
	}()
	if p.V.IsNull() {
		return ""
	}
	t, err := p.GetPlainText(nil)
	if err != nil {
		return ""
	}
	return t
}
