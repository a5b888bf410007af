// Package scrapepoll drives a pull-source node that re-fetches a page on
// a fixed interval and extracts one CSS selector's text, grounded on the
// pack's own Colly/goquery fetcher: a colly.Collector performs the
// request and goquery walks the parsed document, but here both run
// synchronously inside Eval so a slow or failing fetch surfaces as an
// ordinary node error rather than a background goroutine race.
package scrapepoll

import (
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/sbl8/tempo/graph"
	"github.com/sbl8/tempo/tstime"
	"github.com/sbl8/tempo/tsvalue"
)

// Config controls what scrapepoll fetches and how often.
type Config struct {
	URL      string
	Selector string
	Interval time.Duration
	Timeout  time.Duration
}

// NewNode constructs a pull-source node named name that, once started,
// re-fetches cfg.URL every cfg.Interval and writes the concatenated text
// of every element matching cfg.Selector to its single output port
// "text". The node reschedules its own next poll on every evaluation
// through the graph.Rescheduler hook.
func NewNode(name string, cfg Config) *graph.Node {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	var owner tsvalue.NodeID
	var sched tsvalue.Notifier

	return &graph.Node{
		Name: name,
		Kind: graph.KindPullSource,
		Sig: graph.Signature{
			Outputs: []graph.Port{{Name: "text", Kind: graph.KindScalar, ElemType: "string"}},
		},
		NewOutputs: func(o tsvalue.NodeID, s tsvalue.Notifier) map[string]tsvalue.Output {
			owner, sched = o, s
			return map[string]tsvalue.Output{"text": tsvalue.NewCell[string](o, s)}
		},
		Eval: func(now tstime.EngineTime, _ map[string]tsvalue.Output, outputs map[string]tsvalue.Output) error {
			out := outputs["text"].(*tsvalue.Cell[string])

			text, err := fetchText(cfg)
			if err != nil {
				return fmt.Errorf("scrapepoll %q: %w", cfg.URL, err)
			}
			if out.CanApplyResult(now) {
				if err := out.ApplyResult(now, text); err != nil {
					return err
				}
			}
			if r, ok := sched.(graph.Rescheduler); ok {
				r.ScheduleAt(now.Add(cfg.Interval), owner)
			}
			return nil
		},
	}
}

func fetchText(cfg Config) (string, error) {
	c := colly.NewCollector()
	c.SetRequestTimeout(cfg.Timeout)

	var text string
	var extractErr error
	c.OnHTML("html", func(e *colly.HTMLElement) {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(e.Response.Body)))
		if err != nil {
			extractErr = err
			return
		}
		var parts []string
		doc.Find(cfg.Selector).Each(func(_ int, s *goquery.Selection) {
			parts = append(parts, strings.TrimSpace(s.Text()))
		})
		text = strings.Join(parts, "\n")
	})

	if err := c.Visit(cfg.URL); err != nil {
		return "", err
	}
	if extractErr != nil {
		return "", extractErr
	}
	return text, nil
}
