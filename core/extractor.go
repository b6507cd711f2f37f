package core

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// FeedbackView is one row of the engine's command feedback table.
type FeedbackView struct {
	Unit       int    `json:"unit"`
	Status     string `json:"status"`
	ProducedID int    `json:"produced_id,omitempty"`
	Message    string `json:"message,omitempty"`
}

// Extractor provides methods for parsing HTML.
var Extractor = &extractor{}

type extractor struct{}

var stateScript = regexp.MustCompile(`(?s)Engine\.updateState\((.+?)\);`)

// Snapshot extracts the game state from a status page. The embedded
// Engine.updateState(...) payload wins when present; otherwise the #depot, #workers and
// #resources tables are read.
func (e *extractor) Snapshot(html string) (*Snapshot, error) {
	if matches := stateScript.FindStringSubmatch(html); len(matches) == 2 {
		var snap Snapshot
		if err := json.Unmarshal([]byte(matches[1]), &snap); err != nil {
			return nil, fmt.Errorf("failed to unmarshal state data: %w", err)
		}
		return &snap, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to create goquery document: %w", err)
	}

	depot := doc.Find("#depot").First()
	if depot.Length() == 0 {
		return nil, fmt.Errorf("depot not found in HTML")
	}

	snap := &Snapshot{}
	if turn := strings.TrimSpace(doc.Find("#turn").Text()); turn != "" {
		if snap.Turn, err = strconv.Atoi(turn); err != nil {
			return nil, fmt.Errorf("invalid turn %q: %w", turn, err)
		}
	}

	a := attrs{s: depot}
	snap.Depot = DepotView{
		ID:            a.required("data-id"),
		X:             a.required("data-x"),
		Y:             a.required("data-y"),
		Gold:          a.required("data-gold"),
		Wood:          a.required("data-wood"),
		Population:    a.required("data-population"),
		PopulationCap: a.required("data-population-cap"),
	}
	if a.err != nil {
		return nil, fmt.Errorf("depot: %w", a.err)
	}

	doc.Find("#workers tr[data-id]").EachWithBreak(func(i int, s *goquery.Selection) bool {
		a = attrs{s: s}
		w := WorkerView{
			ID:          a.required("data-id"),
			X:           a.required("data-x"),
			Y:           a.required("data-y"),
			Cargo:       s.AttrOr("data-cargo", ""),
			CargoAmount: a.optional("data-cargo-amount"),
		}
		snap.Workers = append(snap.Workers, w)
		return a.err == nil
	})
	if a.err != nil {
		return nil, fmt.Errorf("worker row: %w", a.err)
	}

	doc.Find("#resources tr[data-id]").EachWithBreak(func(i int, s *goquery.Selection) bool {
		a = attrs{s: s}
		r := ResourceView{
			ID:        a.required("data-id"),
			X:         a.required("data-x"),
			Y:         a.required("data-y"),
			Kind:      s.AttrOr("data-kind", ""),
			Remaining: a.required("data-remaining"),
		}
		snap.Resources = append(snap.Resources, r)
		return a.err == nil
	})
	if a.err != nil {
		return nil, fmt.Errorf("resource row: %w", a.err)
	}

	return snap, nil
}

// Feedback extracts the command feedback rows from the HTML.
func (e *extractor) Feedback(html string) ([]FeedbackView, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to create goquery document: %w", err)
	}

	var rows []FeedbackView
	var a attrs
	doc.Find("#feedback tr[data-unit]").EachWithBreak(func(i int, s *goquery.Selection) bool {
		a = attrs{s: s}
		rows = append(rows, FeedbackView{
			Unit:       a.required("data-unit"),
			Status:     strings.ToUpper(s.AttrOr("data-status", "")),
			ProducedID: a.optional("data-produced"),
			Message:    strings.TrimSpace(s.Text()),
		})
		return a.err == nil
	})
	if a.err != nil {
		return nil, fmt.Errorf("feedback row: %w", a.err)
	}
	return rows, nil
}

// HToken extracts the h token from the HTML.
func (e *extractor) HToken(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to create goquery document: %w", err)
	}

	h, exists := doc.Find("input[name=h]").Attr("value")
	if !exists {
		return "", fmt.Errorf("h token not found")
	}

	return h, nil
}

// attrs reads integer attributes off a selection, keeping the first error.
type attrs struct {
	s   *goquery.Selection
	err error
}

func (a *attrs) required(name string) int {
	v, ok := a.s.Attr(name)
	if !ok {
		if a.err == nil {
			a.err = fmt.Errorf("missing attribute %s", name)
		}
		return 0
	}
	return a.parse(name, v)
}

func (a *attrs) optional(name string) int {
	v, ok := a.s.Attr(name)
	if !ok || v == "" {
		return 0
	}
	return a.parse(name, v)
}

func (a *attrs) parse(name, v string) int {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil && a.err == nil {
		a.err = fmt.Errorf("invalid %s %q: %w", name, v, err)
	}
	return n
}
