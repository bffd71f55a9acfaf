package automation

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	nodeIDAttr = "data-seat-id"
	hiddenAttr = "data-seat-hidden"
)

// snapshotScript stamps every element with a stable id and a hidden marker so the
// serialized document can be classified offline and targeted for clicks.
const snapshotScript = `(() => {
  let n = 0;
  for (const el of document.body ? document.body.querySelectorAll('*') : []) {
    el.setAttribute('data-seat-id', String(++n));
    const r = el.getBoundingClientRect();
    const s = window.getComputedStyle(el);
    if (r.width === 0 || r.height === 0 || s.visibility === 'hidden' || s.display === 'none' || s.pointerEvents === 'none') {
      el.setAttribute('data-seat-hidden', '1');
    } else {
      el.removeAttribute('data-seat-hidden');
    }
  }
  return document.documentElement.outerHTML;
})()`

// innerTextScript returns the rendered text of the main region, one line per block.
const innerTextScript = `(() => {
  const root = document.querySelector('main') || document.body;
  return root ? root.innerText : '';
})()`

// Snapshot is a parsed copy of the live DOM at one instant.
type Snapshot struct {
	doc *goquery.Document
}

// TakeSnapshot serializes the page DOM and parses it.
func TakeSnapshot(ctx context.Context, page Page) (*Snapshot, error) {
	var html string
	if err := page.Evaluate(ctx, snapshotScript, &html); err != nil {
		return nil, fmt.Errorf("failed to serialize document: %w", err)
	}
	return ParseSnapshot(html)
}

// ParseSnapshot wraps an already stamped document.
func ParseSnapshot(html string) (*Snapshot, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	return &Snapshot{doc: doc}, nil
}

// Find runs a CSS query over the whole document.
func (s *Snapshot) Find(selector string) *goquery.Selection {
	return s.doc.Find(selector)
}

// Visible returns the elements of sel that rendered with a box.
func Visible(sel *goquery.Selection) *goquery.Selection {
	return sel.FilterFunction(func(_ int, el *goquery.Selection) bool {
		return isVisible(el)
	})
}

func isVisible(el *goquery.Selection) bool {
	if _, hidden := el.Attr(hiddenAttr); hidden {
		return false
	}
	// A hidden ancestor hides the element even when the element itself measured fine.
	return el.ParentsFiltered("["+hiddenAttr+"]").Length() == 0
}

func isEnabled(el *goquery.Selection) bool {
	if _, disabled := el.Attr("disabled"); disabled {
		return false
	}
	v, _ := el.Attr("aria-disabled")
	return v != "true"
}

// Dialogs returns the visible modal dialogs.
func (s *Snapshot) Dialogs() *goquery.Selection {
	return Visible(s.doc.Find(`[role="dialog"], [role="alertdialog"], dialog[open]`))
}

// Text returns the normalized lower-case text of the body.
func (s *Snapshot) Text() string {
	return normalize(s.doc.Find("body").Text())
}

// NodeSelector returns a CSS selector addressing el on the live page.
func NodeSelector(el *goquery.Selection) (string, bool) {
	id, ok := el.Attr(nodeIDAttr)
	if !ok {
		return "", false
	}
	if _, err := strconv.Atoi(id); err != nil {
		return "", false
	}
	return fmt.Sprintf(`[%s="%s"]`, nodeIDAttr, id), true
}

// normalize lower-cases and collapses whitespace.
func normalize(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}

func elementText(el *goquery.Selection) string {
	return normalize(el.Text())
}

// readText returns the rendered text of the page's main region.
func readText(ctx context.Context, page Page) (string, error) {
	var text string
	if err := page.Evaluate(ctx, innerTextScript, &text); err != nil {
		return "", fmt.Errorf("failed to read page text: %w", err)
	}
	return text, nil
}

// jsQuote renders s as a JavaScript string literal.
func jsQuote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
